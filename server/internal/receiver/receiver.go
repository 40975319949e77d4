package receiver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"

	"github.com/sensorlog/sensorlog/pkg/types"
	"github.com/sensorlog/sensorlog/server/internal/store"
)

// Path is where the receiver is mounted.
const Path = "/api/v1/readings"

// maxBodyBytes bounds both the raw and the decompressed request body.
const maxBodyBytes = 16 << 20

// errBodyTooLarge is returned by readBody when either the raw or the
// decompressed body exceeds maxBodyBytes.
var errBodyTooLarge = errors.New("request body too large")

// Evaluator is notified of every stored reading.
type Evaluator interface {
	Evaluate(device, sensor string, value float64)
}

// Response is the JSON body returned for an accepted batch.
type Response struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
}

// Receiver stores readings POSTed by agents.
type Receiver struct {
	store  *store.Store
	alerts Evaluator
	pool   fastjson.ParserPool
}

// New returns a Receiver writing to st. alerts may be nil.
func New(st *store.Store, alerts Evaluator) *Receiver {
	return &Receiver{store: st, alerts: alerts}
}

func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		slog.Warn("receiver: unreadable body", "remote", r.RemoteAddr, "err", err)
		code := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		http.Error(w, err.Error(), code)
		return
	}

	p := rc.pool.Get()
	defer rc.pool.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		slog.Warn("receiver: invalid json", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	var items []*fastjson.Value
	switch v.Type() {
	case fastjson.TypeArray:
		items, _ = v.Array()
	case fastjson.TypeObject:
		items = []*fastjson.Value{v}
	default:
		http.Error(w, "body must be a JSON array or object", http.StatusBadRequest)
		return
	}

	instance := strings.TrimSpace(r.Header.Get("X-Instance-ID"))

	var resp Response
	for i, item := range items {
		e, err := decodeEntry(item)
		if err != nil {
			resp.Rejected++
			slog.Debug("receiver: rejected reading", "index", i, "err", err)
			continue
		}
		if !rc.store.Put(instance, e) {
			resp.Duplicates++
			continue
		}
		resp.Accepted++
		if rc.alerts != nil {
			rc.alerts.Evaluate(e.DeviceName, e.SensorName, float64(e.Value))
		}
	}

	slog.Debug("receiver: batch stored",
		"instance_id", instance,
		"batch_id", r.Header.Get("X-Batch-ID"),
		"accepted", resp.Accepted,
		"duplicates", resp.Duplicates,
		"rejected", resp.Rejected,
	)
	if resp.Duplicates > 0 {
		slog.Info("receiver: redelivered readings dropped",
			"batch_id", r.Header.Get("X-Batch-ID"), "duplicates", resp.Duplicates)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp) //nolint:errcheck
}

// readBody returns the request body, decompressed per Content-Encoding.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer raw.Close()

	var src io.Reader = raw
	switch enc := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
	case "gzip":
		zr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		src = zr
	case "zstd":
		zr, err := zstd.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		src = zr
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}

	body, err := io.ReadAll(io.LimitReader(src, maxBodyBytes+1))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return nil, errBodyTooLarge
	case err != nil:
		return nil, fmt.Errorf("read body: %w", err)
	case len(body) > maxBodyBytes:
		return nil, errBodyTooLarge
	}
	return body, nil
}

// decodeEntry converts one wire object into an Entry.
func decodeEntry(v *fastjson.Value) (types.Entry, error) {
	if v.Type() != fastjson.TypeObject {
		return types.Entry{}, errors.New("not an object")
	}
	e := types.Entry{
		ExperimentID: string(v.GetStringBytes("experiment_id")),
		DeviceName:   string(v.GetStringBytes("device_name")),
		SensorName:   string(v.GetStringBytes("sensor_name")),
	}
	if e.DeviceName == "" || e.SensorName == "" {
		return types.Entry{}, errors.New("device_name and sensor_name are required")
	}

	ts := v.Get("timestamp")
	if ts == nil {
		ts = v.Get("recorded_at")
	}
	switch {
	case ts == nil:
		return types.Entry{}, errors.New("missing timestamp")
	case ts.Type() == fastjson.TypeString:
		e.Timestamp = string(ts.GetStringBytes())
	case ts.Type() == fastjson.TypeNumber:
		e.Timestamp = ts.String()
	default:
		return types.Entry{}, fmt.Errorf("timestamp has type %s", ts.Type())
	}

	val := v.Get("value")
	switch {
	case val == nil:
		return types.Entry{}, errors.New("missing value")
	case val.Type() == fastjson.TypeNull:
		e.Value = float32(math.NaN())
	case val.Type() == fastjson.TypeNumber:
		f, err := val.Float64()
		if err != nil {
			return types.Entry{}, fmt.Errorf("value: %w", err)
		}
		e.Value = float32(f)
	default:
		return types.Entry{}, fmt.Errorf("value has type %s", val.Type())
	}

	if seq := v.Get("seq"); seq != nil && seq.Type() != fastjson.TypeNull {
		n, err := seq.Uint64()
		if err != nil {
			return types.Entry{}, fmt.Errorf("seq: %w", err)
		}
		e.Seq = n
	}
	return e, nil
}
