package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"golang.org/x/time/rate"
)

// SyncJobResult is the outcome of one (user, provider) job in [CalendarEngine.SyncAll].
type SyncJobResult struct {
	UserID   string
	Provider models.Provider
	Stored   int
	Err      error
}

// SyncAllResult collects every job; failures do not stop the pool.
type SyncAllResult struct {
	Jobs      []SyncJobResult
	Succeeded int
	Failed    int
}

// Failures returns only the failed jobs.
func (r *SyncAllResult) Failures() []SyncJobResult {
	var out []SyncJobResult
	for _, j := range r.Jobs {
		if j.Err != nil {
			out = append(out, j)
		}
	}
	return out
}

type syncJob struct {
	userID   string
	provider models.Provider
}

// SyncAll syncs every stored token with a worker pool.
//
// A shared limiter paces job starts so the providers' per-app quotas are respected.
// Each job runs [CalendarEngine.SyncUser]; errors are recorded per job.
func (e *CalendarEngine) SyncAll(ctx context.Context, progress chan<- ProgressUpdate) (*SyncAllResult, error) {
	tokens, err := e.stores.Tokens.List("")
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	result := &SyncAllResult{}
	total := len(tokens)
	if total == 0 {
		return result, nil
	}

	limiter := rate.NewLimiter(rate.Limit(e.rateLimit), 1)
	jobs := make(chan syncJob, total)
	results := make(chan SyncJobResult, total)

	var wg sync.WaitGroup
	workers := min(e.workers, total)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res := SyncJobResult{UserID: job.userID, Provider: job.provider}
				synced, err := e.SyncUser(ctx, nil, job.userID, job.provider)
				if err != nil {
					res.Err = err
				} else {
					res.Stored = len(synced.Events)
				}
				results <- res
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, tok := range tokens {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- syncJob{userID: tok.UserID, provider: tok.Provider}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		result.Jobs = append(result.Jobs, res)
		if res.Err != nil {
			result.Failed++
			e.logger.Warn("sync failed", "user", res.UserID, "provider", res.Provider, "error", res.Err)
		} else {
			result.Succeeded++
		}
		e.sendProgress(progress, syncUserUpdate(len(result.Jobs), total, res))
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%w: sync interrupted after %d of %d jobs", shared.ErrTimeout, len(result.Jobs), total)
	}
	return result, nil
}
