package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotFitness draws best and mean fitness over epochs. The format follows
// the extension of path (png, svg, pdf...).
func PlotFitness(history []EpochStats, title, path string) error {
	if len(history) == 0 {
		return ErrEmptyRun
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Fitness"

	best := make(plotter.XYs, len(history))
	mean := make(plotter.XYs, len(history))
	for i, h := range history {
		best[i].X, best[i].Y = float64(h.Epoch), h.BestFitness
		mean[i].X, mean[i].Y = float64(h.Epoch), h.MeanFitness
	}

	bestLine, err := plotter.NewLine(best)
	if err != nil {
		return err
	}
	meanLine, err := plotter.NewLine(mean)
	if err != nil {
		return err
	}
	meanLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(plotter.NewGrid(), bestLine, meanLine)
	p.Legend.Add("best", bestLine)
	p.Legend.Add("mean", meanLine)
	p.Legend.Top = false
	p.Legend.Left = false

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
