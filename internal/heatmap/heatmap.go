// Package heatmap renders correlation matrices as annotated color-mapped
// images.
package heatmap

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/couchcryptid/aqi-correlation/internal/corr"
)

// paletteLevels is the number of discrete colors sampled from the color map.
const paletteLevels = 255

// colorMaps are the color maps accepted by New. All are perceptually
// ordered with the bright end at +1, so strong positive correlation reads
// as hot.
var colorMaps = map[string]func() palette.ColorMap{
	"blackbody":         moreland.BlackBody,
	"extendedblackbody": moreland.ExtendedBlackBody,
	"kindlmann":         moreland.Kindlmann,
	"extendedkindlmann": moreland.ExtendedKindlmann,
	"bluered":           func() palette.ColorMap { return moreland.SmoothBlueRed() },
}

// supported canvas formats, keyed by file extension without the dot.
var formats = map[string]bool{
	"png":  true,
	"svg":  true,
	"pdf":  true,
	"jpg":  true,
	"jpeg": true,
	"tif":  true,
	"tiff": true,
	"eps":  true,
}

// Palettes returns the accepted palette names, sorted.
func Palettes() []string {
	names := make([]string, 0, len(colorMaps))
	for name := range colorMaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KnownPalette reports whether name is an accepted color map.
func KnownPalette(name string) bool {
	_, ok := colorMaps[strings.ToLower(name)]
	return ok
}

// SupportedFormat reports whether format is an accepted canvas encoding.
func SupportedFormat(format string) bool {
	return formats[strings.ToLower(format)]
}

// FormatFromPath derives the output format from a file extension.
func FormatFromPath(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Options configures a Renderer.
type Options struct {
	Title    string
	WidthIn  float64
	HeightIn float64
	Palette  string
	Invert   bool
	Annotate bool
	Format   string
}

// Renderer draws correlation matrices with a fixed set of options.
type Renderer struct {
	opts Options
	cmap palette.ColorMap
}

// New validates the options and builds a Renderer. The color scale is
// fixed to [-1, 1] so colors are comparable across datasets.
func New(opts Options) (*Renderer, error) {
	if opts.WidthIn <= 0 || opts.HeightIn <= 0 {
		return nil, fmt.Errorf("canvas size must be positive, got %gx%g inches", opts.WidthIn, opts.HeightIn)
	}
	opts.Format = strings.ToLower(opts.Format)
	if opts.Format == "" {
		opts.Format = "png"
	}
	if !formats[opts.Format] {
		return nil, fmt.Errorf("unsupported output format %q", opts.Format)
	}

	build, ok := colorMaps[strings.ToLower(opts.Palette)]
	if !ok {
		return nil, fmt.Errorf("unknown palette %q, valid palettes: %s", opts.Palette, strings.Join(Palettes(), ", "))
	}
	cmap := build()
	cmap.SetMin(-1)
	cmap.SetMax(1)
	if opts.Invert {
		cmap = inverted{cmap}
	}

	return &Renderer{opts: opts, cmap: cmap}, nil
}

// Format returns the output format the renderer encodes to.
func (r *Renderer) Format() string { return r.opts.Format }

// Render draws the matrix as an annotated heatmap with a color bar and
// returns the encoded image.
func (r *Renderer) Render(m *corr.Matrix) ([]byte, error) {
	if m == nil || m.Len() == 0 {
		return nil, errors.New("nothing to render: empty matrix")
	}

	p := plot.New()
	p.Title.Text = r.opts.Title
	p.Title.TextStyle.Font.Size = vg.Points(16)

	hm := plotter.NewHeatMap(matrixGrid{m}, r.cmap.Palette(paletteLevels))
	hm.Min, hm.Max = -1, 1
	p.Add(hm)

	names := m.Columns()
	p.NominalX(names...)
	p.NominalY(reverse(names)...)

	if r.opts.Annotate {
		labels, err := r.cellLabels(m)
		if err != nil {
			return nil, fmt.Errorf("annotate cells: %w", err)
		}
		p.Add(labels)
	}

	bar := plot.New()
	bar.HideX()
	bar.Add(&plotter.ColorBar{ColorMap: r.cmap, Vertical: true})

	width := vg.Length(r.opts.WidthIn) * vg.Inch
	height := vg.Length(r.opts.HeightIn) * vg.Inch
	canvas, err := draw.NewFormattedCanvas(width, height, r.opts.Format)
	if err != nil {
		return nil, fmt.Errorf("create %s canvas: %w", r.opts.Format, err)
	}

	dc := draw.New(canvas)
	barWidth := width / 10
	p.Draw(draw.Crop(dc, 0, -barWidth, 0, 0))
	bar.Draw(draw.Crop(dc, width-barWidth, 0, 0, 0))

	var buf bytes.Buffer
	if _, err := canvas.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode heatmap: %w", err)
	}
	return buf.Bytes(), nil
}

// cellLabels annotates every cell with its coefficient, colored for
// legibility against the cell background.
func (r *Renderer) cellLabels(m *corr.Matrix) (*plotter.Labels, error) {
	n := m.Len()
	xys := make(plotter.XYs, 0, n*n)
	strs := make([]string, 0, n*n)
	values := make([]float64, 0, n*n)

	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			v := m.At(row, col)
			xys = append(xys, plotter.XY{X: float64(col), Y: float64(n - 1 - row)})
			strs = append(strs, FormatCoefficient(v))
			values = append(values, v)
		}
	}

	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: strs})
	if err != nil {
		return nil, err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = draw.XCenter
		labels.TextStyle[i].YAlign = draw.YCenter
		labels.TextStyle[i].Font.Size = vg.Points(10)
		labels.TextStyle[i].Color = r.textColor(values[i])
	}
	return labels, nil
}

// textColor picks black or white for legibility against the cell color.
// NaN cells are unpainted, so they get black.
func (r *Renderer) textColor(v float64) color.Color {
	if math.IsNaN(v) {
		return color.Black
	}
	c, err := r.cmap.At(v)
	if err != nil {
		return color.Black
	}
	cr, cg, cb, _ := c.RGBA()
	// ITU-R BT.601 luma over 16-bit channels.
	luma := 0.299*float64(cr) + 0.587*float64(cg) + 0.114*float64(cb)
	if luma < 0.5*0xffff {
		return color.White
	}
	return color.Black
}

// FormatCoefficient renders a coefficient with two significant digits.
// NaN formats as "NaN".
func FormatCoefficient(v float64) string {
	return strconv.FormatFloat(v, 'g', 2, 64)
}

// matrixGrid adapts a correlation matrix to the plotter grid, flipping
// rows so the matrix reads from the top-left like a printed table.
type matrixGrid struct {
	m *corr.Matrix
}

func (g matrixGrid) Dims() (c, r int)   { n := g.m.Len(); return n, n }
func (g matrixGrid) Z(c, r int) float64 { return g.m.At(g.m.Len()-1-r, c) }
func (g matrixGrid) X(c int) float64    { return float64(c) }
func (g matrixGrid) Y(r int) float64    { return float64(r) }

// inverted flips a color map end for end, putting the bright end at -1.
type inverted struct {
	palette.ColorMap
}

func (m inverted) At(v float64) (color.Color, error) {
	return m.ColorMap.At(m.Max() + m.Min() - v)
}

func (m inverted) Palette(colors int) palette.Palette {
	return reversedPalette{m.ColorMap.Palette(colors).Colors()}
}

// reversedPalette serves a palette's colors in reverse order.
type reversedPalette struct {
	colors []color.Color
}

func (p reversedPalette) Colors() []color.Color {
	out := make([]color.Color, len(p.colors))
	for i, c := range p.colors {
		out[len(out)-1-i] = c
	}
	return out
}

func reverse(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[len(out)-1-i] = n
	}
	return out
}
