package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/server"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the API and webhook server with the scheduled sync, renewal and prediction jobs.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	if port := cmd.Int("port"); port != 0 {
		r.config.Server.Port = port
	}

	dispatcher := tasks.NewDispatcher(cmd.Duration("job-timeout"), shared.WithLogger(r.logger, "component", "dispatch"))
	srv := server.New(r.config.Server, r.engine, dispatcher, shared.WithLogger(r.logger, "component", "http"))

	scheduler := tasks.NewScheduler(r.user.Location(), cmd.Duration("job-timeout"), shared.WithLogger(r.logger, "component", "cron"))
	if !cmd.Bool("no-jobs") {
		if err := tasks.RegisterJobs(scheduler, r.engine, r.config.Sync); err != nil {
			return err
		}
		for name, next := range scheduler.Jobs() {
			r.logger.Info("job scheduled", "job", name, "next", next.Format(time.RFC3339))
		}
		scheduler.Start()
	}

	r.writePlain("→ Listening on http://%s\n", srv.Addr())
	serveErr := srv.ListenAndServe(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		r.logger.Warn("scheduled jobs still running at shutdown", "error", err)
	}

	if serveErr != nil {
		return fmt.Errorf("server stopped: %w", serveErr)
	}
	return nil
}
