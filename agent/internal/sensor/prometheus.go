package sensor

import (
	"context"
	"fmt"
	"io"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// promSensor reads one metric family from a Prometheus text exposition
// endpoint, e.g. a node exporter or a vendor daemon on the device.
type promSensor struct {
	name     string
	endpoint string
	metric   string
	scale    float64
	client   *http.Client
}

func (s *promSensor) Name() string { return s.name }

// Read fetches the endpoint and reports the sum of every sample in the
// configured family, multiplied by the scale. A family missing from the
// exposition is an error rather than a zero reading.
func (s *promSensor) Read(ctx context.Context) ([]Reading, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("sensor %q: %w", s.name, err)
	}
	mf, ok := mfs[s.metric]
	if !ok {
		return nil, fmt.Errorf("sensor %q: metric %q not exposed", s.name, s.metric)
	}
	return []Reading{{Sensor: s.name, Value: float32(sumFamily(mf) * s.scale)}}, nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
func sumFamily(mf *dto.MetricFamily) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}
