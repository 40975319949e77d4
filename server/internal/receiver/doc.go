// Package receiver implements the collector's ingest endpoint,
// POST /api/v1/readings.
//
// The body is a JSON array of reading objects (a single object is also
// accepted), optionally compressed with Content-Encoding zstd or gzip. Each
// object carries experiment_id, device_name, sensor_name, value (a number,
// or null for a non-finite reading) and its timestamp under either
// "timestamp" or "recorded_at", as a string or a number. An optional "seq"
// numbers the reading within the sending agent process; together with the
// X-Instance-ID header it lets the store drop redelivered readings without
// mistaking repeated values for retries. Malformed objects
// are counted as rejected; the rest are stored and evaluated against the
// alert rules. Authentication is applied by the auth middleware in front of
// this handler.
package receiver
