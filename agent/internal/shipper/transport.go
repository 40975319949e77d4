package shipper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// maxDrainBytes caps how much of a response body is read before closing so
// keep-alive connections can be reused.
const maxDrainBytes = 64 << 10

// TransportOptions configures an HTTPTransport.
type TransportOptions struct {
	// Client performs the requests. Its Timeout bounds each POST.
	Client *http.Client

	// Compression is one of: none | gzip | zstd.
	Compression string

	// Require2xx treats non-2xx responses as not dispatched.
	Require2xx bool

	// InstanceID is sent as X-Instance-ID. Defaults to a random UUID. Entry
	// sequence numbers restart with the process, so the ID must too.
	InstanceID string
}

// HTTPTransport posts batches to the collector over HTTP.
//
// By default any HTTP response, whatever its status, counts as dispatched:
// only a failure to obtain a response is retried. Require2xx tightens this.
type HTTPTransport struct {
	client      *http.Client
	compression string
	require2xx  bool
	instanceID  string
	zenc        *zstd.Encoder
}

// NewHTTPTransport builds an HTTPTransport from opts.
func NewHTTPTransport(opts TransportOptions) (*HTTPTransport, error) {
	t := &HTTPTransport{
		client:      opts.Client,
		compression: strings.ToLower(opts.Compression),
		require2xx:  opts.Require2xx,
		instanceID:  opts.InstanceID,
	}
	if t.client == nil {
		t.client = http.DefaultClient
	}
	if t.instanceID == "" {
		t.instanceID = uuid.NewString()
	}
	switch t.compression {
	case "", "none":
		t.compression = ""
	case "gzip":
	case "zstd":
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("shipper: zstd encoder: %w", err)
		}
		t.zenc = enc
	default:
		return nil, fmt.Errorf("shipper: unsupported compression %q", opts.Compression)
	}
	return t, nil
}

// InstanceID returns the value sent in X-Instance-ID.
func (t *HTTPTransport) InstanceID() string { return t.instanceID }

// Post implements Transport.
func (t *HTTPTransport) Post(ctx context.Context, url, contentType string, body []byte) (bool, string) {
	payload, err := t.encode(body)
	if err != nil {
		return false, "encode payload: " + err.Error()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, "build request: " + err.Error()
	}
	req.Header.Set("Content-Type", contentType)
	if t.compression != "" {
		req.Header.Set("Content-Encoding", t.compression)
	}
	req.Header.Set("X-Instance-ID", t.instanceID)
	req.Header.Set("X-Batch-ID", uuid.NewString())

	resp, err := t.client.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	switch {
	case ok:
		return true, ""
	case t.require2xx:
		return false, fmt.Sprintf("collector returned HTTP %d", resp.StatusCode)
	default:
		return true, fmt.Sprintf("collector returned HTTP %d", resp.StatusCode)
	}
}

func (t *HTTPTransport) encode(body []byte) ([]byte, error) {
	switch t.compression {
	case "zstd":
		return t.zenc.EncodeAll(body, make([]byte, 0, len(body)/2)), nil
	case "gzip":
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return body, nil
	}
}
