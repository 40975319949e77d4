package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sensorlog/sensorlog/pkg/types"
	"github.com/sensorlog/sensorlog/server/internal/alerts"
	"github.com/sensorlog/sensorlog/server/internal/store"
	wsHub "github.com/sensorlog/sensorlog/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

func newStore(entries ...types.Entry) *store.Store {
	st := store.New(5*time.Minute, 10)
	for _, e := range entries {
		st.Put("", e)
	}
	return st
}

func reading(device, sensor string, v float32) types.Entry {
	return types.Entry{ExperimentID: "exp1", DeviceName: device, SensorName: sensor, Timestamp: "1", Value: v}
}

type fakeAlerts struct{}

func (fakeAlerts) Active() []*alerts.Alert {
	return []*alerts.Alert{{ID: "a1", RuleName: "hot", State: "firing"}}
}
func (fakeAlerts) FiringCount() int { return 1 }

func startHub(t *testing.T, st *store.Store) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(st, fakeAlerts{}, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(hub)
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func waitCount(t *testing.T, hub *wsHub.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Count: got %d, want %d", hub.Count(), want)
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateSnapshot(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(reading("dev1", "tempC", 21.5)))

	m := readMessage(t, dial(t, wsURL))
	if m.Event != "snapshot" {
		t.Errorf("event: got %q, want snapshot", m.Event)
	}
	if m.Data.GeneratedAt == "" {
		t.Error("generated_at: missing")
	}
	if len(m.Data.Series) != 1 || m.Data.Series[0].SensorName != "tempC" {
		t.Errorf("series = %+v", m.Data.Series)
	}
	if len(m.Alerts) != 1 || m.Alerts[0].ID != "a1" {
		t.Errorf("alerts = %+v", m.Alerts)
	}
}

func TestHub_EmptyStore(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore())
	m := readMessage(t, dial(t, wsURL))
	if len(m.Data.Series) != 0 {
		t.Errorf("series: got %d, want 0", len(m.Data.Series))
	}
}

func TestHub_Count(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
		readMessage(t, conns[i])
	}
	waitCount(t, hub, 3)

	conns[0].Close()
	waitCount(t, hub, 2)
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	st := newStore()
	wsURL, _, _ := startHub(t, st)

	conn := dial(t, wsURL)
	readMessage(t, conn) // immediate, empty

	st.Put("", reading("dev9", "pressure", 1013))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m := readMessage(t, conn)
		if len(m.Data.Series) == 1 {
			if m.Data.Series[0].DeviceName != "dev9" {
				t.Errorf("device: got %q, want dev9", m.Data.Series[0].DeviceName)
			}
			return
		}
	}
	t.Fatal("no broadcast carried the new series")
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newStore())

	conn := dial(t, wsURL)
	readMessage(t, conn)
	waitCount(t, hub, 1)

	cancel()
	waitCount(t, hub, 0)
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(newStore(), nil, testInterval)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
