package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status       string `json:"status"` // unknown | healthy | degraded
	DeviceCount  int    `json:"device_count"`
	SeriesCount  int    `json:"series_count"`
	Readings     uint64 `json:"readings"`
	Duplicates   uint64 `json:"duplicates"`
	NonFinite    uint64 `json:"non_finite"`
	FiringAlerts int    `json:"firing_alerts"`
}

// DeviceResponse is one entry of GET /api/v1/devices.
type DeviceResponse struct {
	DeviceName string   `json:"device_name"`
	Sensors    []string `json:"sensors"`
	Readings   uint64   `json:"readings"`
	LastSeen   string   `json:"last_seen"` // RFC3339
}

// ReadingResponse is one stored reading.
type ReadingResponse struct {
	ExperimentID string   `json:"experiment_id"`
	Timestamp    string   `json:"timestamp"`
	Value        *float64 `json:"value"`
	ReceivedAt   string   `json:"received_at"` // RFC3339
}

// SeriesResponse describes one device/sensor series.
type SeriesResponse struct {
	DeviceName  string            `json:"device_name"`
	SensorName  string            `json:"sensor_name"`
	Latest      ReadingResponse   `json:"latest"`
	Readings    uint64            `json:"readings"`
	Duplicates  uint64            `json:"duplicates"`
	NonFinite   uint64            `json:"non_finite"`
	FirstSeen   string            `json:"first_seen"`
	LastSeen    string            `json:"last_seen"`
	Diagnostics []DiagnosticHint  `json:"diagnostics"`
	History     []ReadingResponse `json:"history,omitempty"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the
// WebSocket broadcast.
type SnapshotResponse struct {
	Series      []SeriesResponse `json:"series"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

type errorResponse struct {
	Error string `json:"error"`
}
