package render

import (
	"fmt"
	"io"

	"golang.org/x/image/colornames"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"csi-monitor/internal/csi"
)

// dpi is the resolution gonum/plot's raster backend renders at
const dpi = 96

// Plot draws the magnitude spectrum of a frame as a line plot
type Plot struct {
	path   string
	width  vg.Length
	height vg.Length
}

// NewPlot creates a plot renderer writing PNG images of the given pixel
// size to path. An empty path is allowed when only Encode is used.
func NewPlot(path string, widthPx, heightPx int) *Plot {
	return &Plot{
		path:   path,
		width:  vg.Length(widthPx) * vg.Inch / dpi,
		height: vg.Length(heightPx) * vg.Inch / dpi,
	}
}

// Render clears and redraws the plot file for the frame
func (p *Plot) Render(f *csi.Frame) error {
	return writeFileAtomic(p.path, func(w io.Writer) error {
		return p.Encode(w, f)
	})
}

// Encode writes the frame's plot as PNG to w
func (p *Plot) Encode(w io.Writer, f *csi.Frame) error {
	pl, err := newSpectrumPlot(f)
	if err != nil {
		return err
	}

	wt, err := pl.WriterTo(p.width, p.height, "png")
	if err != nil {
		return fmt.Errorf("failed to create plot writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}

// Close is a no-op; the plot file stays in place
func (p *Plot) Close() error {
	return nil
}

func newSpectrumPlot(f *csi.Frame) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("CSI frame %d (%s)", f.Seq, f.Time.Format("15:04:05.000"))
	pl.X.Label.Text = "Subcarrier"
	pl.Y.Label.Text = "Magnitude"
	pl.X.Min = -csi.IndexOffset
	pl.X.Max = csi.Subcarriers - csi.IndexOffset - 1
	pl.BackgroundColor = colornames.Snow
	pl.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(f.Points))
	for i, pt := range f.Points {
		xys[i].X = float64(pt.Index)
		xys[i].Y = pt.Magnitude
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("failed to build magnitude line: %w", err)
	}
	line.Color = colornames.Steelblue
	line.Width = vg.Points(1.5)
	pl.Add(line)

	return pl, nil
}
