package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"csi-monitor/internal/csi"
)

// clearScreen moves the cursor home and clears the terminal
const clearScreen = "\033[H\033[2J"

// ASCII draws magnitude vs subcarrier as a text graph, one column per
// subcarrier
type ASCII struct {
	w      io.Writer
	height int
	clear  bool
}

// NewASCII creates a text renderer of the given height. With clear set the
// terminal is wiped before every redraw.
func NewASCII(w io.Writer, height int, clear bool) *ASCII {
	if height < 2 {
		height = 2
	}
	return &ASCII{w: w, height: height, clear: clear}
}

// Render redraws the graph for the frame
func (a *ASCII) Render(f *csi.Frame) error {
	bw := bufio.NewWriter(a.w)
	if a.clear {
		bw.WriteString(clearScreen)
	}
	a.draw(bw, f)
	return bw.Flush()
}

// Close is a no-op
func (a *ASCII) Close() error {
	return nil
}

func (a *ASCII) draw(w *bufio.Writer, f *csi.Frame) {
	points := f.Points
	if len(points) == 0 {
		fmt.Fprintf(w, "CSI frame %d: no points to display\n", f.Seq)
		return
	}

	// Magnitudes are non-negative, so the axis starts at zero
	maxMag := 0.0
	for _, p := range points {
		if p.Magnitude > maxMag {
			maxMag = p.Magnitude
		}
	}
	if maxMag == 0 {
		maxMag = 1e-6
	}

	width := len(points)
	graph := make([][]rune, a.height)
	for i := range graph {
		graph[i] = []rune(strings.Repeat(" ", width))
	}

	for x, p := range points {
		y := int(float64(a.height-1) * (1.0 - p.Magnitude/maxMag))
		if y < 0 {
			y = 0
		}
		if y >= a.height {
			y = a.height - 1
		}
		graph[y][x] = '*'
		// Fill below the point so the spectrum reads as bars
		for fill := y + 1; fill < a.height; fill++ {
			graph[fill][x] = '|'
		}
	}

	fmt.Fprintf(w, "CSI frame %d  %s  peak %.2f\n", f.Seq, f.Time.Format("15:04:05.000"), maxMag)
	fmt.Fprintf(w, "Magnitude\n")
	for i, row := range graph {
		value := maxMag * float64(a.height-1-i) / float64(a.height-1)
		fmt.Fprintf(w, "%8.2f |%s|\n", value, string(row))
	}

	fmt.Fprintf(w, "         +%s+\n", strings.Repeat("-", width))
	fmt.Fprintf(w, "          %s\n", axisLabels(points))
	fmt.Fprintf(w, "          Subcarrier\n")
}

// axisLabels places the first, zero and last subcarrier indices under the
// matching columns
func axisLabels(points []csi.Point) string {
	row := []rune(strings.Repeat(" ", len(points)+4))
	put := func(col int, label string) {
		for i, r := range label {
			if col+i < len(row) {
				row[col+i] = r
			}
		}
	}

	put(0, fmt.Sprintf("%d", points[0].Index))
	for col, p := range points {
		if p.Index == 0 && col > 3 && col < len(points)-4 {
			put(col, "0")
		}
	}
	last := fmt.Sprintf("%d", points[len(points)-1].Index)
	put(len(points)-len(last), last)

	return strings.TrimRight(string(row), " ")
}
