// Package repositories implements SQLite persistence for all domain entities.
//
// Repositories translate between rows and [models] types. Writes validate the model first
// and wrap failures in [shared.ErrInvalidInput]; missing rows surface as [shared.ErrNotFound].
// Most tables carry a natural UNIQUE key, so writes are upserts.
//
// Key Implementations:
//   - [UserRepository] : user accounts with email lookups and soft deletes
//   - [TokenRepository] : provider OAuth tokens, one per (user, provider)
//   - [SymptomRepository] : daily symptom logs, one per (user, day)
//   - [CycleRepository] : cycle parameters per user
//   - [WatchRepository] : provider push channels and their expirations
//   - [EventRepository] : cached calendar events with impact scores
//   - [PredictionRepository] : daily wellness predictions
//
// Timestamps are written in UTC so range queries compare correctly.
package repositories
