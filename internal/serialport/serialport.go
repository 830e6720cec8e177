// Package serialport reads newline terminated CSI records from a serial
// device, or from any other byte stream.
package serialport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// maxLineLength bounds a single record; a CSI line is well under 1 KiB
const maxLineLength = 64 * 1024

// Config contains serial port parameters
type Config struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

// Device is a line source over a serial port or a file
type Device struct {
	name   string
	rc     io.ReadCloser
	lines  *LineReader
	logger *slog.Logger
}

// Open opens a serial device in 8N1 mode with the configured read timeout
func Open(cfg Config, logger *slog.Logger) (*Device, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}

	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout on %s: %w", cfg.Port, err)
		}
	}

	// Drop whatever the board printed before we attached
	if err := port.ResetInputBuffer(); err != nil {
		logger.Debug("serial: could not reset input buffer", "port", cfg.Port, "error", err)
	}

	logger.Info("serial: port opened", "port", cfg.Port, "baud", cfg.BaudRate, "timeout", cfg.ReadTimeout)
	return NewDevice(cfg.Port, port, logger), nil
}

// OpenFile opens a file of recorded CSI lines as a line source
func OpenFile(path string, logger *slog.Logger) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file %s: %w", path, err)
	}
	logger.Info("serial: reading records from file", "file", path)
	return NewDevice(path, f, logger), nil
}

// NewDevice wraps an already open stream
func NewDevice(name string, rc io.ReadCloser, logger *slog.Logger) *Device {
	return &Device{
		name:   name,
		rc:     rc,
		lines:  NewLineReader(rc),
		logger: logger,
	}
}

// Name returns the device path or file name
func (d *Device) Name() string {
	return d.name
}

// ReadLine blocks until one line is available or the read times out. A
// timeout yields the partial line read so far, possibly empty, and no error.
func (d *Device) ReadLine() (string, error) {
	line, err := d.lines.ReadLine()
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read from %s: %w", d.name, err)
	}
	return line, err
}

// Close releases the underlying port or file
func (d *Device) Close() error {
	if d.rc != nil {
		return d.rc.Close()
	}
	return nil
}

// LineReader splits a byte stream into lines. Unlike bufio.Scanner it
// treats a zero-byte read as a timeout rather than a stall, which is how
// serial ports report an expired read deadline.
type LineReader struct {
	r       io.Reader
	chunk   []byte
	pending []byte
	err     error
}

// NewLineReader creates a line reader over r
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{
		r:     r,
		chunk: make([]byte, 512),
	}
}

// ReadLine returns the next line without its "\n" or "\r\n" terminator.
//
// When the underlying reader returns zero bytes without an error, the bytes
// collected so far are returned as a (possibly empty) line. Once the reader
// fails, buffered lines are still returned before the error; a trailing
// unterminated line is returned once with a nil error.
func (l *LineReader) ReadLine() (string, error) {
	for {
		if i := bytes.IndexByte(l.pending, '\n'); i >= 0 {
			return l.take(i, i+1), nil
		}

		if len(l.pending) >= maxLineLength {
			return l.take(len(l.pending), len(l.pending)), nil
		}

		if l.err != nil {
			if len(l.pending) > 0 {
				return l.take(len(l.pending), len(l.pending)), nil
			}
			return "", l.err
		}

		n, err := l.r.Read(l.chunk)
		if n > 0 {
			l.pending = append(l.pending, l.chunk[:n]...)
		}
		if err != nil {
			l.err = err
			continue
		}
		if n == 0 {
			return l.take(len(l.pending), len(l.pending)), nil
		}
	}
}

// take returns pending[:end] as a line and discards pending[:consumed]
func (l *LineReader) take(end, consumed int) string {
	line := string(bytes.TrimSuffix(l.pending[:end], []byte{'\r'}))
	rest := copy(l.pending, l.pending[consumed:])
	l.pending = l.pending[:rest]
	return line
}

// PortInfo describes a serial port found on the system
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// ListPorts enumerates the serial ports available on this machine
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}
