package render

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"csi-monitor/internal/csi"
)

func testFrame(seq uint64, scale float64) *csi.Frame {
	samples := make([]csi.Sample, csi.Subcarriers)
	for i := range samples {
		samples[i] = csi.Sample{Real: 3 * scale * float64(i%5+1), Imag: 4 * scale}
	}
	return csi.FrameFromSamples(seq, time.Unix(1700000000, 0), samples)
}

func TestPlotRenderWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "csi.png")
	p := NewPlot(path, 320, 200)

	for seq := uint64(1); seq <= 2; seq++ {
		if err := p.Render(testFrame(seq, 1)); err != nil {
			t.Fatalf("Render %d failed: %v", seq, err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open plot: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Plot is not a valid PNG: %v", err)
	}
	// Allow a pixel of rounding in the length to pixel conversion
	if b := img.Bounds(); abs(b.Dx()-320) > 1 || abs(b.Dy()-200) > 1 {
		t.Errorf("Expected ~320x200 image, got %dx%d", b.Dx(), b.Dy())
	}

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the plot file, found %d entries", len(entries))
	}
}

func TestPlotEncode(t *testing.T) {
	var buf bytes.Buffer
	if err := NewPlot("", 200, 150).Encode(&buf, testFrame(1, 1)); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Errorf("Encoded plot is not a valid PNG: %v", err)
	}
}

func TestASCIIRender(t *testing.T) {
	var out bytes.Buffer
	a := NewASCII(&out, 8, true)
	if err := a.Render(testFrame(42, 1)); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	text := out.String()
	if !strings.HasPrefix(text, clearScreen) {
		t.Error("Expected output to start with the clear sequence")
	}
	if !strings.Contains(text, "CSI frame 42") {
		t.Error("Expected frame header in output")
	}

	var rows int
	for _, line := range strings.Split(text, "\n") {
		if strings.HasSuffix(line, "|") && strings.Contains(line, " |") {
			rows++
			body := line[strings.Index(line, "|")+1 : len(line)-1]
			if len([]rune(body)) != csi.Subcarriers {
				t.Errorf("Expected %d columns, got %d in %q", csi.Subcarriers, len([]rune(body)), line)
			}
		}
	}
	if rows != 8 {
		t.Errorf("Expected 8 graph rows, got %d", rows)
	}
	if !strings.Contains(text, "-26") || !strings.Contains(text, "25") {
		t.Error("Expected subcarrier axis labels")
	}
}

func TestASCIIRenderWithoutClear(t *testing.T) {
	var out bytes.Buffer
	if err := NewASCII(&out, 4, false).Render(testFrame(1, 0)); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(out.String(), clearScreen) {
		t.Error("Did not expect the clear sequence")
	}
}

func TestHistoryDropsOldest(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Push([]float64{float64(i)})
		if h.Len() > 3 {
			t.Fatalf("History holds %d rows, capacity 3", h.Len())
		}
	}

	rows := h.Rows()
	if rows[0][0] != 3 || rows[2][0] != 5 {
		t.Errorf("Expected rows 3..5, got %v", rows)
	}

	lo, hi := h.Bounds()
	if lo != 3 || hi != 5 {
		t.Errorf("Expected bounds 3..5, got %v..%v", lo, hi)
	}
}

func TestHistoryCopiesRows(t *testing.T) {
	h := NewHistory(2)
	row := []float64{1, 2}
	h.Push(row)
	row[0] = 99
	if h.Rows()[0][0] != 1 {
		t.Error("History must not alias the pushed slice")
	}
}

func TestColorAt(t *testing.T) {
	if c := colorAt(-1); c != gradient[0] {
		t.Errorf("Expected first stop below range, got %v", c)
	}
	if c := colorAt(2); c != gradient[len(gradient)-1] {
		t.Errorf("Expected last stop above range, got %v", c)
	}
	// 0.5 falls exactly on the fourth stop (green)
	if c := colorAt(0.5); c != gradient[3] {
		t.Errorf("Expected green at 0.5, got %v", c)
	}
}

func TestWaterfallRender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waterfall.png")
	wf, err := NewWaterfall(path, 10, 2)
	if err != nil {
		t.Fatalf("NewWaterfall failed: %v", err)
	}
	defer wf.Close()

	for seq := uint64(1); seq <= 15; seq++ {
		if err := wf.Render(testFrame(seq, float64(seq))); err != nil {
			t.Fatalf("Render %d failed: %v", seq, err)
		}
	}
	if wf.History().Len() != 10 {
		t.Errorf("Expected 10 rows of history, got %d", wf.History().Len())
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open waterfall: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Waterfall is not a valid PNG: %v", err)
	}
	wantW := borderLeft + csi.Subcarriers*2 + borderRight
	wantH := borderTop + 10*2 + borderBottom
	if b := img.Bounds(); b.Dx() != wantW || b.Dy() != wantH {
		t.Errorf("Expected %dx%d image, got %dx%d", wantW, wantH, b.Dx(), b.Dy())
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
