// Package api serves the read-only HTTP surface of a running engine:
// Prometheus metrics, a JSON status snapshot, and a liveness probe.
//
// The server is optional and only started when metrics are enabled or a
// bind address is passed on the command line.
package api
