// Package ws streams the collector's live view to dashboard clients over
// WebSocket.
//
// A client connecting to /ws/stream immediately receives one message and
// then another every broadcast interval:
//
//	{
//	  "event":  "snapshot",
//	  "data":   { same schema as GET /api/v1/snapshot },
//	  "alerts": [ firing and recently resolved alerts ]
//	}
//
// Clients that fall behind are disconnected rather than buffered without
// bound. The upgrader accepts every origin; restrict origins at the proxy.
package ws
