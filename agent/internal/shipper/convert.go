package shipper

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/sensorlog/sensorlog/pkg/types"
)

// Timestamp field names understood by the collector.
const (
	FieldTimestamp  = "timestamp"
	FieldRecordedAt = "recorded_at"
)

// wireEntry is the JSON object sent for each entry. Exactly one of
// Timestamp and RecordedAt is set.
type wireEntry struct {
	ExperimentID string       `json:"experiment_id"`
	DeviceName   string       `json:"device_name"`
	SensorName   string       `json:"sensor_name"`
	Value        *json.Number `json:"value"`
	Timestamp    string       `json:"timestamp,omitempty"`
	RecordedAt   string       `json:"recorded_at,omitempty"`
	Seq          uint64       `json:"seq,omitempty"`
}

// JSONSerializer encodes a batch as a JSON array of objects.
type JSONSerializer struct {
	recordedAt bool
}

// NewJSONSerializer returns a serializer that writes the timestamp under
// field, which is FieldTimestamp or FieldRecordedAt. Anything else falls back
// to FieldTimestamp.
func NewJSONSerializer(field string) *JSONSerializer {
	return &JSONSerializer{recordedAt: field == FieldRecordedAt}
}

// ContentType implements Serializer.
func (j *JSONSerializer) ContentType() string { return contentTypeJSON }

// Serialize implements Serializer.
func (j *JSONSerializer) Serialize(entries []types.Entry) ([]byte, error) {
	out := make([]wireEntry, len(entries))
	for i, e := range entries {
		out[i] = j.toWire(e)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("shipper: marshal batch: %w", err)
	}
	return data, nil
}

func (j *JSONSerializer) toWire(e types.Entry) wireEntry {
	w := wireEntry{
		ExperimentID: e.ExperimentID,
		DeviceName:   e.DeviceName,
		SensorName:   e.SensorName,
		Value:        formatValue(e.Value),
		Seq:          e.Seq,
	}
	if j.recordedAt {
		w.RecordedAt = e.Timestamp
	} else {
		w.Timestamp = e.Timestamp
	}
	return w
}

// formatValue renders v with float32 precision so 21.7 stays "21.7".
// NaN and infinities have no JSON form and encode as null.
func formatValue(v float32) *json.Number {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n := json.Number(strconv.FormatFloat(f, 'f', -1, 32))
	return &n
}
