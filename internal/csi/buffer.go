package csi

import "time"

// PlotBuffer holds the two parallel sequences drawn by the renderers:
// subcarrier indices and magnitudes. It keeps at most capacity pairs and
// drops the oldest ones first.
//
// A PlotBuffer is owned by a single goroutine; it does no locking.
type PlotBuffer struct {
	capacity   int
	indices    []int
	magnitudes []float64
}

// NewPlotBuffer creates an empty buffer. A non-positive capacity falls back
// to Subcarriers.
func NewPlotBuffer(capacity int) *PlotBuffer {
	if capacity <= 0 {
		capacity = Subcarriers
	}
	return &PlotBuffer{
		capacity:   capacity,
		indices:    make([]int, 0, capacity+Subcarriers),
		magnitudes: make([]float64, 0, capacity+Subcarriers),
	}
}

// Apply appends one (index, magnitude) pair per sample and trims both
// sequences back to the buffer capacity.
func (b *PlotBuffer) Apply(r Record) {
	for n, s := range r.Samples {
		b.indices = append(b.indices, n-IndexOffset)
		b.magnitudes = append(b.magnitudes, s.Magnitude())
	}
	b.trim()
}

func (b *PlotBuffer) trim() {
	if excess := len(b.indices) - b.capacity; excess > 0 {
		n := copy(b.indices, b.indices[excess:])
		b.indices = b.indices[:n]
	}
	if excess := len(b.magnitudes) - b.capacity; excess > 0 {
		n := copy(b.magnitudes, b.magnitudes[excess:])
		b.magnitudes = b.magnitudes[:n]
	}
}

// Len returns the number of pairs currently held
func (b *PlotBuffer) Len() int {
	return len(b.indices)
}

// Capacity returns the maximum number of pairs held
func (b *PlotBuffer) Capacity() int {
	return b.capacity
}

// Indices returns a copy of the subcarrier index sequence
func (b *PlotBuffer) Indices() []int {
	out := make([]int, len(b.indices))
	copy(out, b.indices)
	return out
}

// Magnitudes returns a copy of the magnitude sequence
func (b *PlotBuffer) Magnitudes() []float64 {
	out := make([]float64, len(b.magnitudes))
	copy(out, b.magnitudes)
	return out
}

// Points returns the buffer contents as plot points
func (b *PlotBuffer) Points() []Point {
	points := make([]Point, len(b.indices))
	for i := range b.indices {
		points[i] = Point{Index: b.indices[i], Magnitude: b.magnitudes[i]}
	}
	return points
}

// Update is the per-tick handler: it parses line and, when the record is
// valid, applies it to buf. Invalid lines leave buf untouched.
func Update(buf *PlotBuffer, line string) (Record, error) {
	rec, err := ParseRecord(line)
	if err != nil {
		return Record{}, err
	}
	buf.Apply(rec)
	return rec, nil
}

// Frame is an accepted record together with the plot state it produced
type Frame struct {
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"time"`
	Samples []Sample  `json:"samples"`
	Points  []Point   `json:"points"`
}

// NewFrame snapshots the buffer after rec was applied to it
func NewFrame(seq uint64, t time.Time, rec Record, buf *PlotBuffer) *Frame {
	samples := make([]Sample, len(rec.Samples))
	copy(samples, rec.Samples)
	return &Frame{
		Seq:     seq,
		Time:    t,
		Samples: samples,
		Points:  buf.Points(),
	}
}

// FrameFromSamples rebuilds a frame from stored samples, as if the record
// had been applied to a fresh buffer
func FrameFromSamples(seq uint64, t time.Time, samples []Sample) *Frame {
	rec := Record{Samples: samples}
	return &Frame{
		Seq:     seq,
		Time:    t,
		Samples: samples,
		Points:  rec.Points(),
	}
}

// Magnitudes returns the magnitude column of the frame's points
func (f *Frame) Magnitudes() []float64 {
	mags := make([]float64, len(f.Points))
	for i, p := range f.Points {
		mags[i] = p.Magnitude
	}
	return mags
}
