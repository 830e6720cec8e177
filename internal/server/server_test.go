package server

import (
	"encoding/json"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"csi-monitor/internal/csi"
	"csi-monitor/internal/render"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer("127.0.0.1:0", render.NewPlot("", 320, 200), logger)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Hub().CloseAll()
		ts.Close()
	})
	return s, ts
}

func testFrame(seq uint64) *csi.Frame {
	samples := make([]csi.Sample, csi.Subcarriers)
	for i := range samples {
		samples[i] = csi.Sample{Real: 3, Imag: 4}
	}
	return csi.FrameFromSamples(seq, time.Unix(1700000000, 0), samples)
}

func TestFrameEndpointBeforeFirstFrame(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/api/frame", "/plot.png"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

func TestFrameEndpoint(t *testing.T) {
	s, ts := newTestServer(t)
	if err := s.Render(testFrame(3)); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	resp, err := http.Get(ts.URL + "/api/frame")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var frame csi.Frame
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		t.Fatalf("Decoding frame failed: %v", err)
	}
	if frame.Seq != 3 || len(frame.Points) != csi.Subcarriers {
		t.Errorf("Unexpected frame seq %d with %d points", frame.Seq, len(frame.Points))
	}
	if frame.Points[0].Index != -26 || frame.Points[0].Magnitude != 5 {
		t.Errorf("Unexpected first point %+v", frame.Points[0])
	}
}

func TestPlotEndpoint(t *testing.T) {
	s, ts := newTestServer(t)
	s.Render(testFrame(1))

	resp, err := http.Get(ts.URL + "/plot.png")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}
	if _, err := png.Decode(resp.Body); err != nil {
		t.Errorf("Response is not a valid PNG: %v", err)
	}
}

func TestIndexPage(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "/ws") {
		t.Error("Expected index page to connect to /ws")
	}

	resp, err = http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown path, got %d", resp.StatusCode)
	}
}

func TestWebSocketReceivesLatestAndNewFrames(t *testing.T) {
	s, ts := newTestServer(t)
	s.Render(testFrame(1))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg struct {
		Type    string    `json:"type"`
		Payload csi.Frame `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if msg.Type != "frame" || msg.Payload.Seq != 1 {
		t.Fatalf("Expected latest frame 1, got %s %d", msg.Type, msg.Payload.Seq)
	}

	// Wait for the handler to register the client before broadcasting
	deadline := time.Now().Add(5 * time.Second)
	for s.Hub().Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	s.Render(testFrame(2))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if msg.Payload.Seq != 2 {
		t.Errorf("Expected broadcast frame 2, got %d", msg.Payload.Seq)
	}
}

func TestRenderDoesNotBlockOnStalledClient(t *testing.T) {
	s, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for s.Hub().Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Hub().Clients() != 1 {
		t.Fatal("Client was never registered")
	}

	// The client never reads, so its socket buffers fill up
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20000; i++ {
			s.Render(testFrame(uint64(i + 1)))
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Render blocked on a client that stopped reading")
	}

	deadline = time.Now().Add(5 * time.Second)
	for s.Hub().Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := s.Hub().Clients(); n != 0 {
		t.Errorf("Expected the stalled client to be dropped, %d still connected", n)
	}
	if s.Latest().Seq != 20000 {
		t.Errorf("Expected latest frame 20000, got %d", s.Latest().Seq)
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	hub := NewWSHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub.Broadcast(WSMessage{Type: "frame", Payload: testFrame(1)})
	hub.CloseAll()
	if hub.Clients() != 0 {
		t.Errorf("Expected no clients, got %d", hub.Clients())
	}
}
