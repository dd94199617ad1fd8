// Package services implements the clients for every third-party API cadence talks to.
//
// # Calendar Providers
//
// [CalendarService] abstracts event CRUD and push notifications:
//   - [GoogleCalendarService] wraps the generated Calendar v3 client (google.golang.org/api/calendar/v3).
//     Watch opens a web_hook channel; StopWatch calls channels.stop.
//   - [OutlookCalendarService] calls Microsoft Graph v1.0 through [APIService]. Watch creates a
//     subscription which can be extended in place ([WatchRenewer]).
//
// Both list single occurrences, so recurring series arrive already expanded.
//
// # OAuth
//
// [OAuthClient] implements [OAuthService] for both providers using the golang.org/x/oauth2
// google and microsoft endpoints.
//
// [StoredTokenSource] refreshes tokens and writes them back through a [TokenStore], so a refresh
// performed by the server is visible to the CLI and vice versa. [WithTokenRetry] gives an operation
// exactly one retry after forcing a refresh when the provider answers 401.
//
// # Gmail and OpenAI
//
// [GmailService] finds calendar invitations in the mailbox and parses them with golang-ical ([ParseInvite]).
// [OpenAIService] wraps Chat Completions in JSON mode for the wellness predictor.
//
// # Error Handling
//
// Non-2xx responses become [*APIError] values matching [shared.ErrAPIRequest] and a status specific sentinel:
//   - [shared.ErrTokenExpired] : 401
//   - [shared.ErrForbidden] : 403
//   - [shared.ErrNotFound] : 404, 410
//   - [shared.ErrServiceUnavailable] : 429, 503
//
// Google client errors ([googleapi.Error]) are mapped onto the same sentinels.
package services
