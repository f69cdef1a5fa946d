package fibers

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

//////
// Diagnostics sink.
//////

// saveResidualScatter writes a duration-versus-deviance-residual scatter
// plot to path. This is an optional diagnostic side channel: the search
// driver invokes it only when a plot path is configured and discards any
// error, so plotting is never a correctness dependency.
func saveResidualScatter(path string, durations, residuals []float64) error {
	p := plot.New()
	p.Title.Text = "Cox model deviance residuals"
	p.X.Label.Text = "Duration"
	p.Y.Label.Text = "Deviance residual"

	pts := make(plotter.XYs, len(durations))
	for i := range durations {
		pts[i].X = durations[i]
		pts[i].Y = residuals[i]
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}

	p.Add(scatter, plotter.NewGrid())

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
