/*
Package monitoring provides metrics collection for the console pipeline.

# Overview

Prometheus collectors track what flows through the pipeline: messages
appended to the console buffer, outbound sends and their failures, writes
truncated to the size limit, raw bytes captured from redirected file
descriptors, and the state of the transport circuit breaker.

# Usage

	// Create metrics on a dedicated registry
	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Pipeline components accept a nil *Metrics
	metrics.RecordTruncation("stdout")

# Endpoint

Metrics are exposed at /metrics through promhttp.HandlerFor(registry, ...).
*/
package monitoring
