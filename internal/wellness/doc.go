// Package wellness holds the cycle arithmetic and scoring used across cadence.
//
// # Cycle Phases
//
// [PhaseOn] places a calendar day within a user's cycle. Day 1 is the first day of the
// last logged period; days before it are projected backwards so every date maps to a
// cycle day in 1..CycleLength. Phases are, in order:
//
//   - menstrual: day <= period length
//   - follicular: between the period and the ovulation window
//   - ovulation: ovulation day ± 1, where ovulation day = cycle length - luteal length
//   - luteal: the remainder of the cycle
//
// [ForecastPeriods] and [FertileWindows] project the next cycles with an RRULE
// (FREQ=DAILY;INTERVAL=<cycle length>), and [ExportICS] renders them as an iCalendar feed.
//
// # Event Impact
//
// [Impact] scores how draining a calendar event is likely to be:
//
//	score = base(category) × phase modifier × time-of-day modifier × stress modifier
//
// Negative scores mark restorative events. See [Classify] for the category keywords.
//
// # Predictions
//
// [Predictor] asks an [LLM] for the day's wellness index and falls back to a
// deterministic formula plus bounded jitter when the model is unavailable or answers
// with something unusable.
package wellness
