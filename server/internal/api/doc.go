// Package api implements the collector's read-only REST API.
//
// New(store, alerts) returns an http.Handler that serves:
//
//	GET /api/v1/health                   overall status and counters
//	GET /api/v1/devices                  devices with their sensors
//	GET /api/v1/series                   every live series with its latest reading
//	GET /api/v1/series/{device}/{sensor} one series with its history; 404 if unknown or stale
//	GET /api/v1/alerts                   firing and recently resolved alerts
//	GET /api/v1/snapshot                 all live series plus generated_at
//
// Every endpoint answers JSON and returns 405 for anything but GET.
// Non-finite readings are rendered as null.
package api
