// Package sensor provides the measurement producers sampled by the agent.
// Each Sensor returns zero or more Readings per call; the sampler logs them
// through the shipper.
//
// Implemented sensors: Prometheus exposition endpoints (prometheus.go) and
// numeric text files such as sysfs thermal zones (file.go). Factory:
// New(config.Sensor) returns the correct Sensor.
//
// HTTP authentication and TLS for Prometheus sensors come from the shared
// httpx client.
package sensor
