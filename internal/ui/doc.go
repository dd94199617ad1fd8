// Package ui implements the terminal dashboard using bubbletea's Elm architecture.
//
// The dashboard has three states:
//  1. [LoadingView] : waiting for the first load
//  2. [DashboardView] : today's cycle day and phase, the day's wellness prediction and the upcoming events with their impact level
//  3. [SyncView] : a spinner with live progress while the calendar syncs
//
// The [Model] implements the standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the sync engine, so the view never blocks on provider calls.
//
// Keys: s syncs, r reloads from the local cache, j/k move through events, q quits.
package ui
