package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/bratbench/config"
	"github.com/YuminosukeSato/bratbench/datasets"
	"github.com/YuminosukeSato/bratbench/experiment"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
	"github.com/YuminosukeSato/bratbench/plotting"
)

type runFlags struct {
	configPath  string
	experiments []string
	runs        int
	epoch       int
	trials      int
	workers     int
	seed        int
	noTune      bool
	noPlot      bool
	outputDir   string
	plotDir     string
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the experiments of a config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			targets := file.Experiments
			if len(f.experiments) > 0 {
				targets = targets[:0:0]
				for _, name := range f.experiments {
					e, err := file.Experiment(name)
					if err != nil {
						return err
					}
					targets = append(targets, e)
				}
			}
			for _, e := range targets {
				f.apply(cmd, e)
				path, err := runExperiment(cmd.Context(), e, f.noPlot)
				if err != nil {
					return errors.Wrapf(err, "experiment %s", e.Name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: results written to %s\n", e.Name, path)
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "HCL experiment file")
	fl.StringSliceVarP(&f.experiments, "experiment", "e", nil, "experiments to run (default all)")
	fl.IntVar(&f.runs, "runs", 0, "override the number of repetitions")
	fl.IntVar(&f.epoch, "epoch", 0, "override the ensemble size")
	fl.IntVar(&f.trials, "trials", 0, "override the tuning trials per model")
	fl.IntVar(&f.workers, "workers", 0, "parallel tuning workers (default all cores)")
	fl.IntVar(&f.seed, "seed", 0, "override the base seed")
	fl.BoolVar(&f.noTune, "no-tune", false, "use manual configs only")
	fl.BoolVar(&f.noPlot, "no-plot", false, "skip the trajectory plot")
	fl.StringVar(&f.outputDir, "output-dir", "", "override the results directory")
	fl.StringVar(&f.plotDir, "plot-dir", "", "override the plot directory")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// apply copies explicitly set flags over the file values.
func (f *runFlags) apply(cmd *cobra.Command, e *config.Experiment) {
	fl := cmd.Flags()
	if fl.Changed("runs") {
		e.Runs = f.runs
	}
	if fl.Changed("epoch") {
		e.Epoch = f.epoch
	}
	if fl.Changed("trials") {
		e.Trials = f.trials
	}
	if fl.Changed("workers") {
		e.Workers = f.workers
	}
	if fl.Changed("seed") {
		seed := f.seed
		e.Seed = &seed
	}
	if f.noTune {
		tune := false
		e.Tune = &tune
	}
	if fl.Changed("output-dir") {
		e.OutputDir = f.outputDir
	}
	if fl.Changed("plot-dir") {
		e.PlotDir = f.plotDir
	}
}

func runExperiment(ctx context.Context, e *config.Experiment, noPlot bool) (string, error) {
	logger := log.GetLoggerWithName("bratbench").With(log.DatasetKey, e.Name)

	opts := experiment.Options{
		Epoch:   e.Epoch,
		Tune:    e.TuneEnabled(),
		Models:  e.ModelNames(),
		Manual:  e.Manual,
		Trials:  e.Trials,
		Workers: e.Workers,
		Seed:    e.SeedValue(),
	}
	res, err := experiment.RunRepeated(ctx, e.Name, e.Runs, dataFunc(e), opts)
	if err != nil {
		return "", err
	}
	path, err := res.Save(e.OutputDir)
	if err != nil {
		return "", err
	}
	logger.Info("Results saved", "path", path, "runs", len(res.Runs))

	if !noPlot {
		title := e.Title
		if title == "" {
			title = plotting.DefaultTitle
		}
		if _, err := plotting.PlotMeanStdTrajectories(res.MSERuns(), e.Epoch, e.Name, e.PlotDir, plotting.WithTitle(title)); err != nil {
			return "", err
		}
	}
	return path, nil
}

func dataFunc(e *config.Experiment) experiment.DataFunc {
	if e.Synthetic != nil {
		cfg := e.Synthetic.SyntheticConfig()
		return experiment.FromSynthetic(e.Synthetic.Function,
			datasets.WithNTrain(cfg.NTrain),
			datasets.WithNTest(cfg.NTest),
			datasets.WithNCalibration(cfg.NCalibration),
			datasets.WithNoiseStd(cfg.NoiseStd),
		)
	}
	return experiment.FromUCI(e.UCI.Source(), e.UCI.ID, e.UCI.UCIConfig())
}
