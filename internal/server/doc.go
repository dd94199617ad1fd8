// Package server provides HTTP routing, middleware, the cadence JSON API, provider webhooks
// and the CLI's OAuth callback.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [BasicRouter] registers "METHOD /path" patterns on an [http.ServeMux].
//
// Every route is wrapped with [Recover], [Logging] and [Metrics.Middleware]; request counters and latency
// histograms are labelled with the matched pattern and exposed on /metrics.
//
// # Webhooks
//
// [WebhookHandler] accepts Google Calendar channel notifications on /webhooks/google and Microsoft Graph
// change notifications on /webhooks/microsoft. Notifications are matched to a stored watch channel and
// checked against its client state; a sync of the owner's calendar is then handed to a [tasks.Dispatcher]
// and the request is acknowledged without waiting for it.
//
// # API
//
// [APIHandler] serves /api. The caller is identified by the [UserHeader]; errors are mapped with
// [shared.HTTPStatus] and rendered as {"error": message}.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback for `cadence auth`. A temporary server on
// localhost handles one callback, validates the state parameter, exchanges the code and hands the token
// back through a channel.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
