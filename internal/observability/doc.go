// Package observability provides structured logging and metrics
// for the order-desk backend.
//
// This package implements:
//   - zap logger construction from configuration
//   - Prometheus collectors for HTTP traffic, gate decisions and
//     assistant calls, exposed on a dedicated metrics listener
package observability
