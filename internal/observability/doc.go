// Package observability provides structured logging and Prometheus metrics
// for the retrieval-augmented answering service.
//
// This package implements:
//   - zap logger construction from LOG_LEVEL / LOG_FORMAT
//   - Request-scoped loggers carrying chi's request ID
//   - Pipeline stage latency, stage errors and answer-mode counters
//   - HTTP request metrics and the /metrics handler
//
// A nil *Metrics is valid and records nothing, so tests and the ingest CLI
// can run without a registry.
package observability
