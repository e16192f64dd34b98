// Package services defines the [Service] interface for the Callyzer API and implements it with [CallyzerClient].
//
// # Endpoint Catalog
//
// Every upstream endpoint is an [Endpoint] with its own method, path and authentication scheme:
//   - employees and summary use the settings paths and the spi-key and company headers
//   - the call-log report endpoints are POSTed with a bearer token
//
// The bearer token is injected by an [oauth2.Transport] over a static token source.
//
// # Resilience
//
// Outbound calls go through a [rate.Limiter] and a [gobreaker.CircuitBreaker]. Nothing is retried.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : transport failure, non-2xx status or an open circuit
//   - [shared.ErrUnexpectedResponse] : a body without a result array
//   - [shared.ErrInvalidArgument] : an unknown endpoint name
package services
