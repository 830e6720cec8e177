package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"csi-monitor/internal/config"
	"csi-monitor/internal/csi"
)

// Source yields one CSI line per call. A read timeout is reported as an
// empty (or partial) line with a nil error; io.EOF ends the run.
type Source interface {
	ReadLine() (string, error)
	Close() error
}

// Sink consumes accepted frames: renderers, the recorder, the live server
type Sink interface {
	Render(f *csi.Frame) error
	Close() error
}

// Stats counts what the monitor has seen
type Stats struct {
	Started time.Time
	Ticks   uint64 // Lines read
	Frames  uint64 // Records accepted and rendered
	Dropped uint64 // Records discarded as malformed or incomplete
	Errors  uint64 // Sink failures
}

// Monitor drives the read, parse, update, render cycle on a fixed tick
type Monitor struct {
	config config.MonitorConfig
	source Source
	sinks  []Sink
	buffer *csi.PlotBuffer
	logger *slog.Logger
	stats  Stats
	now    func() time.Time
}

// NewMonitor creates a monitor reading from source and rendering to sinks
func NewMonitor(cfg config.MonitorConfig, source Source, logger *slog.Logger, sinks ...Sink) *Monitor {
	return &Monitor{
		config: cfg,
		source: source,
		sinks:  sinks,
		buffer: csi.NewPlotBuffer(cfg.Window),
		logger: logger,
		now:    time.Now,
	}
}

// AddSink registers another frame consumer
func (m *Monitor) AddSink(s Sink) {
	m.sinks = append(m.sinks, s)
}

// Buffer returns the plot state owned by the monitor
func (m *Monitor) Buffer() *csi.PlotBuffer {
	return m.buffer
}

// Stats returns a copy of the counters
func (m *Monitor) Stats() Stats {
	return m.stats
}

// Run ticks until the context is cancelled, the source is exhausted, or
// MaxFrames frames were accepted. Ticks never overlap: a slow read simply
// delays the next tick.
func (m *Monitor) Run(ctx context.Context) error {
	m.stats.Started = m.now()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor: stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}

		if _, err := m.Tick(); err != nil {
			if errors.Is(err, io.EOF) {
				m.logger.Info("monitor: source exhausted")
				return nil
			}
			return fmt.Errorf("monitor tick failed: %w", err)
		}

		if m.config.MaxFrames > 0 && m.stats.Frames >= uint64(m.config.MaxFrames) {
			m.logger.Info("monitor: frame limit reached", "frames", m.stats.Frames)
			return nil
		}
	}
}

// Tick reads one line from the source and processes it. It returns the
// accepted frame, or nil when the line was dropped.
func (m *Monitor) Tick() (*csi.Frame, error) {
	line, err := m.source.ReadLine()
	if err != nil {
		return nil, err
	}
	return m.Process(line), nil
}

// Process is the per-tick handler. Invalid lines leave the plot buffer
// unchanged and nothing is rendered.
func (m *Monitor) Process(line string) *csi.Frame {
	m.stats.Ticks++

	rec, err := csi.Update(m.buffer, line)
	if err != nil {
		m.stats.Dropped++
		m.logger.Debug("monitor: dropping record", "error", err, "bytes", len(line))
		return nil
	}

	m.stats.Frames++
	frame := csi.NewFrame(m.stats.Frames, m.now(), rec, m.buffer)

	for _, sink := range m.sinks {
		if err := sink.Render(frame); err != nil {
			m.stats.Errors++
			m.logger.Warn("monitor: sink failed", "sink", fmt.Sprintf("%T", sink), "frame", frame.Seq, "error", err)
		}
	}

	return frame
}

// Close releases the source and every sink, collecting their errors
func (m *Monitor) Close() error {
	var errs []error

	if m.source != nil {
		if err := m.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("source close error: %w", err))
		}
	}

	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%T close error: %w", sink, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %w", errors.Join(errs...))
	}
	return nil
}
