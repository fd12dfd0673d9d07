// Package plot renders minimization traces as PNG data URIs.
//
// It is a collaborator of the numeric core: it consumes the compiled f and
// f', the iteration records, and the located minimum, and returns opaque
// image references. Nothing in the core depends on it.
package plot

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/color"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	gosecant "github.com/njchilds90/gosecant"
)

const dataURIPrefix = "data:image/png;base64,"

var (
	colorF      = color.RGBA{B: 200, A: 255}
	colorDF     = color.RGBA{G: 140, A: 255}
	colorLower  = color.RGBA{R: 220, A: 255}
	colorUpper  = color.RGBA{G: 160, B: 60, A: 255}
	colorMarker = color.RGBA{R: 128, B: 128, A: 255}
)

// Renderer draws iteration and final graphs. The zero value is not usable;
// construct with NewRenderer.
type Renderer struct {
	workers int
	samples int
	width   vg.Length
	height  vg.Length
	logger  *slog.Logger
}

type Config struct {
	// Workers bounds how many iteration graphs render concurrently.
	Workers int
	// Samples is the number of points sampled per curve.
	Samples int
	Logger  *slog.Logger
}

const (
	DefaultWorkers = 4
	DefaultSamples = 400
)

func DefaultConfig() Config {
	return Config{
		Workers: DefaultWorkers,
		Samples: DefaultSamples,
		Logger:  slog.New(slog.DiscardHandler),
	}
}

func normalizeConfig(input Config) Config {
	defaults := DefaultConfig()
	if input.Workers <= 0 {
		input.Workers = defaults.Workers
	}
	if input.Samples < 2 {
		input.Samples = defaults.Samples
	}
	if input.Logger == nil {
		input.Logger = defaults.Logger
	}
	return input
}

func NewRenderer(cfg ...Config) *Renderer {
	normalized := DefaultConfig()
	if len(cfg) > 0 {
		normalized = normalizeConfig(cfg[0])
	}
	return &Renderer{
		workers: normalized.Workers,
		samples: normalized.Samples,
		width:   10 * vg.Inch,
		height:  4 * vg.Inch,
		logger:  normalized.Logger,
	}
}

// Sample evaluates e at n evenly spaced points of [lo, hi]. Points outside
// the domain of e are dropped, leaving gaps in the curve.
func Sample(e gosecant.Evaluator, lo, hi float64, n int) plotter.XYs {
	if n < 2 {
		n = 2
	}
	xs := floats.Span(make([]float64, n), lo, hi)
	pts := make(plotter.XYs, 0, n)
	for _, x := range xs {
		y, err := e.Evaluate(x)
		if err != nil {
			continue
		}
		pts = append(pts, plotter.XY{X: x, Y: y})
	}
	return pts
}

// IterationGraphs renders one graph per record: f and f' over
// [L-0.5, R+0.5] with the bracket ends and the secant point marked. A graph
// that fails to render is dropped; only cancellation is an error.
func (r *Renderer) IterationGraphs(ctx context.Context, f, df gosecant.Evaluator, iters []gosecant.IterationRecord) ([]string, error) {
	out := make([]string, len(iters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, rec := range iters {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			uri, err := r.iterationGraph(f, df, rec)
			if err != nil {
				r.logger.LogAttrs(gctx, slog.LevelWarn, "iteration graph dropped",
					slog.Int("iteration", rec.Iteration),
					slog.Any("error", err),
				)
				return nil
			}
			out[i] = uri
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	graphs := make([]string, 0, len(out))
	for _, uri := range out {
		if uri != "" {
			graphs = append(graphs, uri)
		}
	}
	return graphs, nil
}

func (r *Renderer) iterationGraph(f, df gosecant.Evaluator, rec gosecant.IterationRecord) (string, error) {
	lo, hi := rec.L-0.5, rec.R+0.5
	bounds := []bound{
		{label: "L", x: rec.L, color: colorLower},
		{label: "R", x: rec.R, color: colorUpper},
	}
	var fMarks []marker
	if fz, err := f.Evaluate(rec.Z); err == nil {
		fMarks = append(fMarks, marker{label: "z", x: rec.Z, y: fz})
	}
	title := fmt.Sprintf("Iteration %d", rec.Iteration)
	left, err := panel(title, "f(x)", Sample(f, lo, hi, r.samples), colorF, bounds, fMarks)
	if err != nil {
		return "", err
	}
	right, err := panel(title, "f'(x)", Sample(df, lo, hi, r.samples), colorDF, bounds,
		[]marker{{label: "z", x: rec.Z, y: rec.FPrimeZ}})
	if err != nil {
		return "", err
	}
	return r.encode(left, right)
}

// FinalGraph renders f with the minimum marked beside f' with its root
// marked, over [max(0.1, x_min-2), x_min+2].
func (r *Renderer) FinalGraph(ctx context.Context, f, df gosecant.Evaluator, xMin float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lo, hi := math.Max(0.1, xMin-2), xMin+2
	if lo >= hi {
		lo = xMin - 2
	}
	var fMarks, dfMarks []marker
	if y, err := f.Evaluate(xMin); err == nil {
		fMarks = append(fMarks, marker{label: "Min Point", x: xMin, y: y})
	}
	if y, err := df.Evaluate(xMin); err == nil {
		dfMarks = append(dfMarks, marker{label: "Derivative at Min", x: xMin, y: y})
	}
	left, err := panel("Function Curve", "f(x)", Sample(f, lo, hi, r.samples), colorF, nil, fMarks)
	if err != nil {
		return "", err
	}
	right, err := panel("Derivative Curve", "f'(x)", Sample(df, lo, hi, r.samples), colorDF, nil, dfMarks)
	if err != nil {
		return "", err
	}
	return r.encode(left, right)
}

// ============================================================
// Drawing helpers
// ============================================================

type bound struct {
	label string
	x     float64
	color color.Color
}

type marker struct {
	label string
	x, y  float64
}

func panel(title, ylabel string, curve plotter.XYs, curveColor color.Color, bounds []bound, marks []marker) (*gplot.Plot, error) {
	p := gplot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	ymin, ymax := -1.0, 1.0
	if len(curve) > 0 {
		ymin, ymax = math.Inf(1), math.Inf(-1)
		for _, pt := range curve {
			ymin = math.Min(ymin, pt.Y)
			ymax = math.Max(ymax, pt.Y)
		}
		line, err := plotter.NewLine(curve)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Color = curveColor
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(ylabel, line)
	}

	for _, b := range bounds {
		l, err := plotter.NewLine(plotter.XYs{{X: b.x, Y: ymin}, {X: b.x, Y: ymax}})
		if err != nil {
			return nil, err
		}
		l.LineStyle.Color = b.color
		l.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(l)
		p.Legend.Add(b.label, l)
	}

	for _, m := range marks {
		s, err := plotter.NewScatter(plotter.XYs{{X: m.x, Y: m.y}})
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Color = colorMarker
		s.GlyphStyle.Radius = vg.Points(4)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(m.label, s)
	}
	return p, nil
}

// encode lays the panels out side by side and returns a PNG data URI.
func (r *Renderer) encode(panels ...*gplot.Plot) (string, error) {
	img := vgimg.New(r.width, r.height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 1,
		Cols: len(panels),
		PadX: vg.Millimeter * 4,
		PadY: vg.Millimeter * 2,
	}
	canvases := gplot.Align([][]*gplot.Plot{panels}, tiles, dc)
	for j, p := range panels {
		p.Draw(canvases[0][j])
	}

	var buf bytes.Buffer
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
