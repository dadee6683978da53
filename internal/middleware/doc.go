// Package middleware provides HTTP middleware for the audio compressor.
//
// It includes:
//   - Request logging in W3C Extended Log Format, tagged with the chi request id
//   - Prometheus request metrics with bounded path cardinality
//   - Panic recovery that answers with a JSON 500
package middleware
