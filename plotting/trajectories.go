// Package plotting renders test-MSE trajectories aggregated over repeated
// runs.
package plotting

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
)

// DefaultTitle is used when no title is given.
const DefaultTitle = "Model Performance Comparison"

var labelMap = map[string]string{
	"BRATD": "BRAT-D",
	"BRATP": "BRAT-P",
}

// Label returns the display name of a model family.
func Label(model string) string {
	if l, ok := labelMap[model]; ok {
		return l
	}
	return model
}

// Trajectory is the per-stage mean and population standard deviation of one
// model's MSE over runs.
type Trajectory struct {
	Model string
	Mean  []float64
	Std   []float64
}

// Single reports whether the model produced one MSE per run.
func (t Trajectory) Single() bool { return len(t.Mean) == 1 }

// Final is the mean MSE at the last stage.
func (t Trajectory) Final() float64 { return t.Mean[len(t.Mean)-1] }

// Aggregate groups runs by model, sorted by model name. Every run of a
// model must report the same number of stages.
func Aggregate(runs []map[string][]float64) ([]Trajectory, error) {
	grouped := make(map[string][][]float64)
	for _, run := range runs {
		for name, mses := range run {
			grouped[name] = append(grouped[name], mses)
		}
	}
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Trajectory, 0, len(names))
	for _, name := range names {
		curves := grouped[name]
		stages := len(curves[0])
		if stages == 0 {
			return nil, errors.NewValueError("Aggregate", fmt.Sprintf("model %s has an empty trajectory", name))
		}
		for _, c := range curves[1:] {
			if len(c) != stages {
				return nil, errors.NewDimensionError("Aggregate "+name, stages, len(c), 1)
			}
		}
		tr := Trajectory{Model: name, Mean: make([]float64, stages), Std: make([]float64, stages)}
		col := make([]float64, len(curves))
		for s := 0; s < stages; s++ {
			for r, c := range curves {
				col[r] = c[s]
			}
			tr.Mean[s], tr.Std[s] = stat.PopMeanStdDev(col, nil)
		}
		out = append(out, tr)
	}
	return out, nil
}

// Options configures PlotMeanStdTrajectories.
type Options struct {
	Title  string
	Width  vg.Length
	Height vg.Length
}

// Draw adds the trajectories to p: a dashed horizontal line across 1..epoch
// for single-value models, the mean with a ±2·std band otherwise, an end
// point per model and the final MSEs in descending order at the right edge.
func Draw(p *plot.Plot, runs []map[string][]float64, epoch int, title string) error {
	trs, err := Aggregate(runs)
	if err != nil {
		return err
	}
	if len(trs) == 0 {
		return errors.NewValueError("Draw", "no trajectories")
	}
	if epoch < 1 {
		return errors.NewValidationError("epoch", "must be at least 1", epoch)
	}
	if title == "" {
		title = DefaultTitle
	}

	p.Title.Text = title
	p.X.Label.Text = "Ensemble Size"
	p.Y.Label.Text = "MSE"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Legend.Top = true
	p.Legend.Left = true

	grid := plotter.NewGrid()
	grid.Vertical.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	grid.Horizontal.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	grid.Vertical.Width = vg.Points(0.5)
	grid.Horizontal.Width = vg.Points(0.5)
	p.Add(grid)

	type final struct {
		mse float64
		c   color.Color
	}
	finals := make([]final, 0, len(trs))
	xMax := float64(epoch)
	lowest, highest := math.Inf(1), math.Inf(-1)

	for i, tr := range trs {
		c := plotutil.Color(i)
		var xys plotter.XYs
		if tr.Single() {
			xys = make(plotter.XYs, epoch)
			for k := range xys {
				xys[k] = plotter.XY{X: float64(k + 1), Y: positive(tr.Mean[0])}
			}
		} else {
			xys = make(plotter.XYs, len(tr.Mean))
			for k := range xys {
				xys[k] = plotter.XY{X: float64(k + 1), Y: positive(tr.Mean[k])}
			}
			band, err := stdBand(tr)
			if err != nil {
				return err
			}
			r, g, b, _ := c.RGBA()
			band.Color = color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 51}
			band.LineStyle.Width = 0
			p.Add(band)
		}
		xMax = math.Max(xMax, xys[len(xys)-1].X)

		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "line for %s", tr.Model)
		}
		line.Color = c
		if tr.Single() {
			line.Width = vg.Points(1.5)
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		} else {
			line.Width = vg.Points(0.7)
		}

		end, err := plotter.NewScatter(xys[len(xys)-1:])
		if err != nil {
			return errors.Wrapf(err, "end point for %s", tr.Model)
		}
		end.GlyphStyle.Color = c
		end.GlyphStyle.Radius = vg.Points(1.5)

		p.Add(line, end)
		p.Legend.Add(Label(tr.Model), line)

		for _, xy := range xys {
			lowest = math.Min(lowest, xy.Y)
			highest = math.Max(highest, xy.Y)
		}
		finals = append(finals, final{mse: tr.Final(), c: c})
	}

	sort.SliceStable(finals, func(i, j int) bool { return finals[i].mse > finals[j].mse })
	labels := plotter.XYLabels{
		XYs:    make(plotter.XYs, len(finals)),
		Labels: make([]string, len(finals)),
	}
	// spread the values top to bottom on the log axis
	logLo, logHi := math.Log10(lowest), math.Log10(highest)
	if logHi-logLo < 1e-9 {
		logLo, logHi = logLo-0.5, logHi+0.5
	}
	step := (logHi - logLo) / float64(max(len(finals), 1))
	styles := make([]text.Style, len(finals))
	for i, f := range finals {
		labels.XYs[i] = plotter.XY{X: xMax * 1.02, Y: math.Pow(10, logHi-float64(i)*step)}
		labels.Labels[i] = fmt.Sprintf("%.3f", f.mse)
		styles[i] = text.Style{
			Color:   f.c,
			Font:    plot.DefaultFont,
			Handler: plot.DefaultTextHandler,
		}
		styles[i].Font.Size = vg.Points(7)
	}
	lbl, err := plotter.NewLabels(labels)
	if err != nil {
		return errors.Wrap(err, "final MSE labels")
	}
	lbl.TextStyle = styles
	p.Add(lbl)
	p.X.Max = xMax * 1.15
	return nil
}

// PlotMeanStdTrajectories draws the runs on a new plot and saves it as
// mse_trajectories_<datasetID>.png under plotDir, creating the directory if
// needed. It returns the written path.
func PlotMeanStdTrajectories(runs []map[string][]float64, epoch int, datasetID, plotDir string, opts ...func(*Options)) (string, error) {
	o := Options{Title: DefaultTitle, Width: 6 * vg.Inch, Height: 6 * vg.Inch}
	for _, opt := range opts {
		opt(&o)
	}

	p := plot.New()
	if err := Draw(p, runs, epoch, o.Title); err != nil {
		return "", err
	}
	if err := os.MkdirAll(plotDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create plot directory %s", plotDir)
	}
	path := filepath.Join(plotDir, fmt.Sprintf("mse_trajectories_%s.png", datasetID))
	if err := p.Save(o.Width, o.Height, path); err != nil {
		return "", errors.Wrapf(err, "save %s", path)
	}
	log.GetLoggerWithName("plotting").Info("Plot saved", log.DatasetKey, datasetID, "path", path)
	return path, nil
}

// WithTitle sets the plot title.
func WithTitle(title string) func(*Options) { return func(o *Options) { o.Title = title } }

// WithSize sets the image size.
func WithSize(w, h vg.Length) func(*Options) {
	return func(o *Options) { o.Width, o.Height = w, h }
}

// stdBand is the closed polygon mean+2·std forward then mean-2·std back.
func stdBand(tr Trajectory) (*plotter.Polygon, error) {
	n := len(tr.Mean)
	pts := make(plotter.XYs, 0, 2*n)
	for k := 0; k < n; k++ {
		pts = append(pts, plotter.XY{X: float64(k + 1), Y: positive(tr.Mean[k] + 2*tr.Std[k])})
	}
	for k := n - 1; k >= 0; k-- {
		lo := tr.Mean[k] - 2*tr.Std[k]
		if lo <= 0 {
			lo = tr.Mean[k] / 10
		}
		pts = append(pts, plotter.XY{X: float64(k + 1), Y: positive(lo)})
	}
	return plotter.NewPolygon(pts)
}

// positive keeps values drawable on the log axis.
func positive(v float64) float64 {
	const floor = 1e-12
	if v < floor {
		return floor
	}
	return v
}
