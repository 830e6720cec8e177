// Package server serves a live view of the CSI magnitude plot: the latest
// frame as JSON and PNG, and a WebSocket stream of every new frame.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"csi-monitor/internal/csi"
	"csi-monitor/internal/render"
)

const shutdownTimeout = 2 * time.Second

// Server is the HTTP server for the live view.
type Server struct {
	mux    *http.ServeMux
	hub    *WSHub
	plot   *render.Plot
	addr   string
	logger *slog.Logger

	mu     sync.RWMutex
	latest *csi.Frame

	httpServer *http.Server
}

// NewServer creates a live view server. plot is used to draw /plot.png.
func NewServer(addr string, plot *render.Plot, logger *slog.Logger) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		hub:    NewWSHub(logger),
		plot:   plot,
		addr:   addr,
		logger: logger,
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/api/frame", s.handleFrame)
	s.mux.HandleFunc("/plot.png", s.handlePlot)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.hub
}

// Start serves until Close is called.
func (s *Server) Start() error {
	s.logger.Info("server: starting live view", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Render stores the frame as the latest one and pushes it to every client.
func (s *Server) Render(f *csi.Frame) error {
	s.mu.Lock()
	s.latest = f
	s.mu.Unlock()

	s.hub.Broadcast(WSMessage{Type: "frame", Payload: f})
	return nil
}

// Latest returns the most recent frame, or nil before the first one.
func (s *Server) Latest() *csi.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Close disconnects clients and shuts the HTTP server down.
func (s *Server) Close() error {
	s.hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame := s.Latest()
	if frame == nil {
		http.Error(w, "no frame received yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(frame); err != nil {
		s.logger.Warn("server: encoding frame", "error", err)
	}
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	frame := s.Latest()
	if frame == nil {
		http.Error(w, "no frame received yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.plot.Encode(w, frame); err != nil {
		s.logger.Warn("server: drawing plot", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("server: websocket upgrade failed", "error", err)
		return
	}

	s.hub.AddClient(conn)
	if frame := s.Latest(); frame != nil {
		if err := s.hub.Send(conn, WSMessage{Type: "frame", Payload: frame}); err != nil {
			s.logger.Warn("server: encoding frame", "error", err)
		}
	}

	// Clients never send anything we use; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.hub.RemoveClient(conn)
			return
		}
	}
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>CSI Monitor</title>
<style>
body { font-family: sans-serif; background: #fafafa; }
canvas { background: #fff; border: 1px solid #ccc; }
</style>
</head>
<body>
<h1>CSI magnitude</h1>
<p id="status">connecting...</p>
<canvas id="plot" width="800" height="400"></canvas>
<script>
const canvas = document.getElementById("plot");
const ctx = canvas.getContext("2d");
const status = document.getElementById("status");

function draw(frame) {
  const pts = frame.points;
  const max = Math.max(1e-6, ...pts.map(p => p.magnitude));
  ctx.clearRect(0, 0, canvas.width, canvas.height);
  ctx.strokeStyle = "steelblue";
  ctx.lineWidth = 2;
  ctx.beginPath();
  pts.forEach((p, i) => {
    const x = 20 + (p.index + 26) * (canvas.width - 40) / 51;
    const y = canvas.height - 20 - p.magnitude / max * (canvas.height - 40);
    if (i === 0) { ctx.moveTo(x, y); } else { ctx.lineTo(x, y); }
  });
  ctx.stroke();
  status.textContent = "frame " + frame.seq + " at " + frame.time + ", peak " + max.toFixed(2);
}

const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = ev => {
  const msg = JSON.parse(ev.data);
  if (msg.type === "frame") { draw(msg.payload); }
};
ws.onclose = () => { status.textContent = "disconnected"; };
</script>
</body>
</html>
`
