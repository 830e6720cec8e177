package csi

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds per-subcarrier statistics over a run of frames
type Summary struct {
	Frames  int       `json:"frames"`
	Indices []int     `json:"indices"`
	Mean    []float64 `json:"mean"`
	StdDev  []float64 `json:"stddev"`
	Max     []float64 `json:"max"`
	Peak    Point     `json:"peak"` // Largest magnitude seen in any frame
}

// Summarize computes per-subcarrier statistics. Frames whose point count
// differs from the first frame's are skipped.
func Summarize(frames []*Frame) Summary {
	if len(frames) == 0 {
		return Summary{}
	}

	width := len(frames[0].Points)
	columns := make([][]float64, width)
	for i := range columns {
		columns[i] = make([]float64, 0, len(frames))
	}

	var used int
	for _, f := range frames {
		if len(f.Points) != width {
			continue
		}
		for i, p := range f.Points {
			columns[i] = append(columns[i], p.Magnitude)
		}
		used++
	}

	s := Summary{
		Frames:  used,
		Indices: make([]int, width),
		Mean:    make([]float64, width),
		StdDev:  make([]float64, width),
		Max:     make([]float64, width),
	}
	for i, col := range columns {
		s.Indices[i] = frames[0].Points[i].Index
		if len(col) == 0 {
			continue
		}
		s.Max[i] = floats.Max(col)
		if len(col) < 2 {
			s.Mean[i] = col[0]
			continue
		}
		s.Mean[i], s.StdDev[i] = stat.MeanStdDev(col, nil)
	}

	if width > 0 {
		peak := floats.MaxIdx(s.Max)
		s.Peak = Point{Index: s.Indices[peak], Magnitude: s.Max[peak]}
	}

	return s
}
