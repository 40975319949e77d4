package admin

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/sensorlog/sensorlog/agent/internal/shipper"
)

// families converts a stats snapshot into metric families in a stable order.
func families(st shipper.Stats) []*dto.MetricFamily {
	out := []*dto.MetricFamily{
		gauge("sensorlog_buffer_entries", "Entries waiting to be flushed.", float64(st.Buffered)),
		counter("sensorlog_logged_total", "Entries appended to the buffer.", st.Logged),
		counter("sensorlog_flushes_total", "Flush attempts that drained at least one entry.", st.Flushes),
		counter("sensorlog_flush_failures_total", "Flushes whose batch was restored.", st.FlushFailures),
		counter("sensorlog_delivered_total", "Entries handed to the collector.", st.Delivered),
		counter("sensorlog_restored_total", "Entries returned to the buffer after a failed flush.", st.Restored),
		counter("sensorlog_cleared_total", "Entries discarded by an operator.", st.Cleared),
	}
	if !st.LastSuccess.IsZero() {
		out = append(out, gauge("sensorlog_last_success_timestamp_seconds",
			"Unix time of the last successful flush.",
			float64(st.LastSuccess.UnixNano())/1e9))
	}
	return out
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   &name,
		Help:   &help,
		Type:   metricType(dto.MetricType_GAUGE),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: &v}}},
	}
}

func counter(name, help string, n uint64) *dto.MetricFamily {
	v := float64(n)
	return &dto.MetricFamily{
		Name:   &name,
		Help:   &help,
		Type:   metricType(dto.MetricType_COUNTER),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: &v}}},
	}
}

func metricType(t dto.MetricType) *dto.MetricType { return &t }
