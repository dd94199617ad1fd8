// Package models defines domain entities and persistence interfaces for cadence.
//
// Persistent entities embed a common base providing ID generation hooks and timestamps,
// and implement [Model]:
//   - [User] : an account with an IANA timezone
//   - [ProviderToken] : OAuth tokens, one per user and [Provider]
//   - [CycleParams] : cycle/period/luteal lengths anchored at the last period start
//   - [SymptomLog] : one self-report per user and day (flow, mood, energy, stress, tags)
//   - [WatchChannel] : push channels (Google) and subscriptions (Microsoft Graph)
//   - [CalendarEvent] : cached provider events with their energy impact
//   - [Prediction] : daily wellness index from the LLM or the fallback formula
//
// Uniqueness rules (one token per provider, one log per day, ...) are enforced by the
// database schema, not by these types.
package models
