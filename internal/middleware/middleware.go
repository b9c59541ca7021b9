// Package middleware holds the echo middleware of the service: request
// ids, the request-scoped logger, New Relic tracing, token
// authentication, the public submit rate limit and the global error
// handler.
package middleware
