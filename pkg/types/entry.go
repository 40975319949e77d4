package types

// Entry is one measurement record. It is a value type and is never modified
// after construction; the agent buffer only changes an entry's position.
type Entry struct {
	// ExperimentID groups readings into a logical run. Opaque to the agent.
	ExperimentID string

	// DeviceName identifies the device that produced the reading.
	DeviceName string

	// SensorName identifies the measurement channel on the device.
	SensorName string

	// Value is the measurement itself.
	Value float32

	// Timestamp is the canonical text form of the moment the reading was
	// logged, produced by one of the agent's timestamp formats.
	Timestamp string

	// Seq is unique among the entries one agent process logs, starting at
	// 1. Zero means the producer did not number the entry.
	Seq uint64
}

// SeriesKey returns the device/sensor pair that identifies the series the
// entry belongs to.
func (e Entry) SeriesKey() string {
	return e.DeviceName + "/" + e.SensorName
}
