// Package csi parses Channel State Information records written by the
// MonitorCSI sketch and keeps the per-subcarrier magnitude window.
//
// A record is one line of 52 tab separated fields. Each field is a
// "real,imaginary" pair for one OFDM subcarrier, indexed -26..25.
package csi

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

const (
	// Subcarriers is the number of fields in a valid record
	Subcarriers = 52

	// IndexOffset maps a field position to its subcarrier index
	IndexOffset = 26

	fieldSeparator = "\t"
	pairSeparator  = ","
)

var (
	// ErrFieldCount is returned for records that do not have exactly Subcarriers fields
	ErrFieldCount = errors.New("wrong number of subcarrier fields")

	// ErrSample is returned for a field that is not a finite numeric pair
	ErrSample = errors.New("malformed subcarrier sample")
)

// Sample is one subcarrier's complex channel estimate
type Sample struct {
	Real float64 `json:"re"`
	Imag float64 `json:"im"`
}

// Magnitude returns the Euclidean norm of the (real, imaginary) pair
func (s Sample) Magnitude() float64 {
	return floats.Norm([]float64{s.Real, s.Imag}, 2)
}

// Point is one (subcarrier index, magnitude) pair of the plot
type Point struct {
	Index     int     `json:"index"`
	Magnitude float64 `json:"magnitude"`
}

// Record is a parsed CSI line
type Record struct {
	Samples []Sample
}

// ParseRecord trims the line, splits it on tabs and parses every field.
// A record is accepted only if it has exactly Subcarriers fields and each of
// them is a numeric pair.
func ParseRecord(line string) (Record, error) {
	fields := strings.Split(strings.TrimSpace(line), fieldSeparator)
	if len(fields) != Subcarriers {
		return Record{}, fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(fields), Subcarriers)
	}

	samples := make([]Sample, len(fields))
	for n, field := range fields {
		sample, err := ParseSample(field)
		if err != nil {
			return Record{}, fmt.Errorf("subcarrier %d: %w", n-IndexOffset, err)
		}
		samples[n] = sample
	}

	return Record{Samples: samples}, nil
}

// ParseSample parses a single "real,imaginary" field
func ParseSample(field string) (Sample, error) {
	parts := strings.Split(strings.TrimSpace(field), pairSeparator)
	if len(parts) != 2 {
		return Sample{}, fmt.Errorf("%w: %q has %d components", ErrSample, field, len(parts))
	}

	var v [2]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("%w: %q: %v", ErrSample, field, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Sample{}, fmt.Errorf("%w: %q is not finite", ErrSample, field)
		}
		v[i] = f
	}

	return Sample{Real: v[0], Imag: v[1]}, nil
}

// Points converts the record into plot points, one per subcarrier
func (r Record) Points() []Point {
	points := make([]Point, len(r.Samples))
	for n, s := range r.Samples {
		points[n] = Point{Index: n - IndexOffset, Magnitude: s.Magnitude()}
	}
	return points
}

// Magnitudes returns the magnitude of every sample in field order
func (r Record) Magnitudes() []float64 {
	mags := make([]float64, len(r.Samples))
	for n, s := range r.Samples {
		mags[n] = s.Magnitude()
	}
	return mags
}
