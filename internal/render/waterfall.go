package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"gonum.org/v1/gonum/floats"

	"csi-monitor/internal/csi"
)

const (
	waterfallFontSize = 10.0
	waterfallDPI      = 72.0
	tickHeight        = 4

	borderTop    = 24
	borderLeft   = 8
	borderRight  = 8
	borderBottom = 24
)

// gradient defines the heat-map colours from weakest to strongest
var gradient = []color.RGBA{
	{0, 0, 0, 255},       // black
	{0, 0, 255, 255},     // blue
	{0, 255, 255, 255},   // cyan
	{0, 255, 0, 255},     // green
	{255, 255, 0, 255},   // yellow
	{255, 0, 0, 255},     // red
	{255, 255, 255, 255}, // white
}

// colorAt maps v in [0,1] onto the gradient, interpolating between stops
func colorAt(v float64) color.RGBA {
	if v <= 0 {
		return gradient[0]
	}
	if v >= 1 {
		return gradient[len(gradient)-1]
	}

	pos := v * float64(len(gradient)-1)
	i := int(pos)
	frac := pos - float64(i)
	lo, hi := gradient[i], gradient[i+1]

	mix := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*frac + 0.5)
	}
	return color.RGBA{mix(lo.R, hi.R), mix(lo.G, hi.G), mix(lo.B, hi.B), 255}
}

// History keeps the magnitude rows of the most recent frames
type History struct {
	depth int
	rows  [][]float64
}

// NewHistory creates a history holding at most depth rows
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = 1
	}
	return &History{depth: depth, rows: make([][]float64, 0, depth)}
}

// Push appends a row, dropping the oldest row once the history is full
func (h *History) Push(row []float64) {
	cp := make([]float64, len(row))
	copy(cp, row)
	h.rows = append(h.rows, cp)
	if excess := len(h.rows) - h.depth; excess > 0 {
		n := copy(h.rows, h.rows[excess:])
		for i := n; i < len(h.rows); i++ {
			h.rows[i] = nil
		}
		h.rows = h.rows[:n]
	}
}

// Len returns the number of rows held
func (h *History) Len() int {
	return len(h.rows)
}

// Rows returns the rows oldest first. The slices are shared; do not modify.
func (h *History) Rows() [][]float64 {
	return h.rows
}

// Bounds returns the smallest and largest magnitude in the history
func (h *History) Bounds() (lo, hi float64) {
	first := true
	for _, row := range h.rows {
		if len(row) == 0 {
			continue
		}
		rmin, rmax := floats.Min(row), floats.Max(row)
		if first || rmin < lo {
			lo = rmin
		}
		if first || rmax > hi {
			hi = rmax
		}
		first = false
	}
	return lo, hi
}

// Waterfall draws the recent frame history as a heat map, newest at the top
type Waterfall struct {
	path    string
	scale   int
	history *History
	frames  uint64

	font *truetype.Font
	face font.Face
}

// NewWaterfall creates a waterfall renderer writing PNG images to path
func NewWaterfall(path string, depth, scale int) (*Waterfall, error) {
	parsed, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	if scale <= 0 {
		scale = 1
	}

	return &Waterfall{
		path:    path,
		scale:   scale,
		history: NewHistory(depth),
		font:    parsed,
		face: truetype.NewFace(parsed, &truetype.Options{
			Size:    waterfallFontSize,
			DPI:     waterfallDPI,
			Hinting: font.HintingNone,
		}),
	}, nil
}

// History exposes the frame history
func (wf *Waterfall) History() *History {
	return wf.history
}

// Render adds the frame to the history and rewrites the image
func (wf *Waterfall) Render(f *csi.Frame) error {
	wf.Push(f)
	return writeFileAtomic(wf.path, func(w io.Writer) error {
		return wf.Encode(w)
	})
}

// Push adds the frame to the history without drawing
func (wf *Waterfall) Push(f *csi.Frame) {
	wf.history.Push(f.Magnitudes())
	wf.frames++
}

// Encode writes the current history as PNG to w
func (wf *Waterfall) Encode(w io.Writer) error {
	img, err := wf.Draw()
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding waterfall: %w", err)
	}
	return nil
}

// Draw renders the history into a new image
func (wf *Waterfall) Draw() (*image.RGBA, error) {
	cols := csi.Subcarriers
	for _, row := range wf.history.Rows() {
		if len(row) > cols {
			cols = len(row)
		}
	}

	area := image.Rect(
		borderLeft,
		borderTop,
		borderLeft+cols*wf.scale,
		borderTop+wf.history.depth*wf.scale,
	)
	img := image.NewRGBA(image.Rect(0, 0, area.Max.X+borderRight, area.Max.Y+borderBottom))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(img, area, image.Black, image.Point{}, draw.Src)

	lo, hi := wf.history.Bounds()
	span := hi - lo
	rows := wf.history.Rows()
	for age := 0; age < len(rows); age++ {
		row := rows[len(rows)-1-age]
		for x, mag := range row {
			v := 0.0
			if span > 0 {
				v = (mag - lo) / span
			}
			cell := image.Rect(
				area.Min.X+x*wf.scale,
				area.Min.Y+age*wf.scale,
				area.Min.X+(x+1)*wf.scale,
				area.Min.Y+(age+1)*wf.scale,
			)
			draw.Draw(img, cell, &image.Uniform{C: colorAt(v)}, image.Point{}, draw.Src)
		}
	}

	if err := wf.annotate(img, area, cols, lo, hi); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}
	return img, nil
}

func (wf *Waterfall) annotate(img *image.RGBA, area image.Rectangle, cols int, lo, hi float64) error {
	ctx := freetype.NewContext()
	ctx.SetDPI(waterfallDPI)
	ctx.SetFont(wf.font)
	ctx.SetFontSize(waterfallFontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)

	metrics := wf.face.Metrics()
	descent := metrics.Descent.Round()

	// Subcarrier scale along the top edge
	for _, col := range []int{0, csi.IndexOffset, cols - 1} {
		x := area.Min.X + col*wf.scale + wf.scale/2
		for y := area.Min.Y - tickHeight; y < area.Min.Y; y++ {
			img.Set(x, y, color.Black)
		}

		label := fmt.Sprintf("%d", col-csi.IndexOffset)
		width := font.MeasureString(wf.face, label).Round()
		lx := x - width/2
		if lx < 0 {
			lx = 0
		}
		if _, err := ctx.DrawString(label, freetype.Pt(lx, area.Min.Y-tickHeight-descent-1)); err != nil {
			return fmt.Errorf("drawing subcarrier label: %w", err)
		}
	}

	info := fmt.Sprintf("%s frames  |H| %.1f-%.1f", humanize.Comma(int64(wf.frames)), lo, hi)
	y := img.Bounds().Max.Y - descent - 4
	if _, err := ctx.DrawString(info, freetype.Pt(area.Min.X, y)); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}
	return nil
}

// Close releases the font face
func (wf *Waterfall) Close() error {
	if wf.face != nil {
		return wf.face.Close()
	}
	return nil
}
