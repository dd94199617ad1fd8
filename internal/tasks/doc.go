// Package tasks keeps the local calendar cache, push channels and daily predictions up to date,
// reporting progress without blocking.
//
// # Core Operations
//
// The [SyncEngine] interface defines four operations:
//
//  1. [SyncEngine.SyncUser] : Refresh one connected calendar
//     - Resolves an authorized client from the stored token (refreshing and persisting it as needed)
//     - Lists events in the sync window, retrying once when the token was rejected
//     - Scores each event with the user's cycle phase and latest stress
//     - Upserts the cache and removes events that disappeared upstream
//
//  2. [SyncEngine.SyncAll] : Sync every stored token
//     - Worker pool paced by a shared [rate.Limiter]
//     - Failures are collected per job and never stop the pool
//
//  3. [SyncEngine.RenewWatches] : Keep push channels alive
//     - Outlook subscriptions are extended in place
//     - Google channels are opened again under a new id and the old one is stopped
//
//  4. [SyncEngine.PredictDay] : Daily wellness prediction
//     - Cached per user and day unless forced
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Background Work
//
// [Dispatcher] runs webhook-triggered syncs detached from the request with their own deadline.
// [Scheduler] runs the periodic sync, renewal and prediction jobs on cron specs.
//
// [rate.Limiter]: https://pkg.go.dev/golang.org/x/time/rate#Limiter
package tasks
