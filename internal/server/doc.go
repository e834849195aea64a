// Package server implements the UDP ingest server that receives framed audio
// packets, plus the HTTP API with monitoring endpoints, Prometheus metrics,
// and WebSocket audio ingest.
package server
