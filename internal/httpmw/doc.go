// Package httpmw holds listener-wide HTTP middleware: request IDs, client IP
// resolution, security headers, panic recovery, body limits, and request-scoped
// logging. Per-route concerns (auth, rate limits, validation) live in the
// pipeline package.
package httpmw
