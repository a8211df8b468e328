// Package http provides the REST handlers of the console server: service
// status, pipeline health, JSON metrics and a stdin reply endpoint.
package http
