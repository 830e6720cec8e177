package serialport

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// scriptedReader returns one scripted chunk per Read call. An empty chunk
// simulates a serial read timeout.
type scriptedReader struct {
	chunks []string
	closed bool
}

func (s *scriptedReader) Read(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		return 0, io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return copy(p, chunk), nil
}

func (s *scriptedReader) Close() error {
	s.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readAll(t *testing.T, l *LineReader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := l.ReadLine()
		if errors.Is(err, io.EOF) {
			return lines
		}
		if err != nil {
			t.Fatalf("ReadLine failed: %v", err)
		}
		lines = append(lines, line)
	}
}

func TestLineReaderSplitsLines(t *testing.T) {
	r := &scriptedReader{chunks: []string{"one\r\ntw", "o\nthree\n"}}
	got := readAll(t, NewLineReader(r))
	want := []string{"one", "two", "three"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestLineReaderTimeoutReturnsPartialLine(t *testing.T) {
	r := &scriptedReader{chunks: []string{"1,2\t3", "", ",4\n"}}
	l := NewLineReader(r)

	line, err := l.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if line != "1,2\t3" {
		t.Errorf("Expected partial line %q, got %q", "1,2\t3", line)
	}

	line, err = l.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if line != ",4" {
		t.Errorf("Expected remainder %q, got %q", ",4", line)
	}
}

func TestLineReaderTimeoutWithNoDataReturnsEmptyLine(t *testing.T) {
	r := &scriptedReader{chunks: []string{""}}
	line, err := NewLineReader(r).ReadLine()
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if line != "" {
		t.Errorf("Expected empty line, got %q", line)
	}
}

func TestLineReaderTrailingLineBeforeEOF(t *testing.T) {
	r := &scriptedReader{chunks: []string{"a\nb"}}
	got := readAll(t, NewLineReader(r))
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Expected [a b], got %q", got)
	}
}

func TestLineReaderOverlongLine(t *testing.T) {
	long := strings.Repeat("x", maxLineLength+10)
	l := NewLineReader(strings.NewReader(long + "\n"))

	first, err := l.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if len(first) != maxLineLength {
		t.Errorf("Expected %d bytes, got %d", maxLineLength, len(first))
	}

	rest, err := l.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if rest != strings.Repeat("x", 10) {
		t.Errorf("Expected 10 byte remainder, got %d bytes", len(rest))
	}
}

func TestDeviceFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.txt")
	if err := os.WriteFile(path, []byte("3,4\t5,12\nsecond\n"), 0644); err != nil {
		t.Fatalf("Failed to write capture: %v", err)
	}

	d, err := OpenFile(path, discardLogger())
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer d.Close()

	if d.Name() != path {
		t.Errorf("Expected name %s, got %s", path, d.Name())
	}

	line, err := d.ReadLine()
	if err != nil || line != "3,4\t5,12" {
		t.Fatalf("Expected first line, got %q (%v)", line, err)
	}
	line, err = d.ReadLine()
	if err != nil || line != "second" {
		t.Fatalf("Expected second line, got %q (%v)", line, err)
	}
	if _, err := d.ReadLine(); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestOpenFileMissing(t *testing.T) {
	if _, err := OpenFile(filepath.Join(t.TempDir(), "missing"), discardLogger()); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestOpenMissingSerialPort(t *testing.T) {
	_, err := Open(Config{Port: "/dev/does-not-exist-csi", BaudRate: 9600}, discardLogger())
	if err == nil {
		t.Error("Expected error opening a missing serial port")
	}
}

func TestDeviceClose(t *testing.T) {
	r := &scriptedReader{}
	d := NewDevice("fake", r, discardLogger())
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !r.closed {
		t.Error("Expected underlying reader to be closed")
	}
}
