// Package api serves the controller's status and control HTTP API.
//
// Routes:
//
//	GET  /api/v1/health       component health, 503 when any check fails
//	GET  /api/v1/status       engine status and sky conditions
//	GET  /api/v1/transitions  journaled transitions (run, state, since, limit, offset)
//	POST /api/v1/stop         request a stop; the engine parks first if needed
//	GET  /metrics             Prometheus scrape endpoint
//
// The API is meant for the observatory LAN and carries no authentication.
package api
