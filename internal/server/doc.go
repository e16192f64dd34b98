// Package server exposes the callsync HTTP interface and the supervised
// services of the serve command.
//
// # Routes
//
// The router is built on chi:
//
//   - POST /api/webhooks/call-logs : webhook push of employees with nested call logs
//   - POST /api/reports/{kind}     : fetch trigger taking company, start_date and end_date
//   - GET  /api/health             : liveness and database check
//   - GET  /metrics                : Prometheus metrics
//
// Every response body is the JSON encoding of a [tasks.Outcome], except the
// summary report which is passed through unchanged and the metrics endpoint.
//
// # Middleware
//
// [Middleware] wraps handlers in the standard func(http.Handler) http.Handler
// form, so chi, httprate and local middleware compose. The webhook route is
// rate limited per client IP and, when a token is configured, requires the
// X-Webhook-Token header.
//
// # Supervision
//
// [NewSupervisor] builds a suture supervisor logging through sutureslog.
// [HTTPService] and [SchedulerService] adapt the HTTP server and the interval
// sweep to suture's Serve pattern.
package server
