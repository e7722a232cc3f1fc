package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/calibration"
	"github.com/YuminosukeSato/bratbench/config"
	"github.com/YuminosukeSato/bratbench/datasets"
	"github.com/YuminosukeSato/bratbench/models"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
	"github.com/YuminosukeSato/bratbench/sklearn/ensemble"
)

// calibrationReport is printed by the calibrate command.
type calibrationReport struct {
	Scale               float64
	CalibrationCoverage float64
	TestCoverage        float64
}

func newCalibrateCmd() *cobra.Command {
	var configPath, name string
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Scale random forest spreads into intervals with a target coverage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := config.Load(configPath)
			if err != nil {
				return err
			}
			e, err := file.Experiment(name)
			if err != nil {
				return err
			}
			rep, err := calibrate(cmd, e)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scale=%.4f calibration_coverage=%.4f test_coverage=%.4f\n",
				rep.Scale, rep.CalibrationCoverage, rep.TestCoverage)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "HCL experiment file")
	cmd.Flags().StringVarP(&name, "experiment", "e", "", "experiment with a calibration block")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("experiment")
	return cmd
}

// calibrate fits the forest on the training split, finds the width scale on
// the calibration rows and reports the coverage it reaches on held-out rows.
// Without a calibration set the test split is halved.
func calibrate(cmd *cobra.Command, e *config.Experiment) (*calibrationReport, error) {
	c := e.Calibration
	if c == nil {
		return nil, errors.NewValidationError("calibration", "experiment has no calibration block", e.Name)
	}
	ds, err := dataFunc(e)(cmd.Context(), 0, e.SeedValue())
	if err != nil {
		return nil, err
	}
	XCal, yCal, XEval, yEval, err := calibrationSplit(ds)
	if err != nil {
		return nil, err
	}

	params := models.Params{"random_state": int(e.SeedValue())}
	if p, ok := e.Manual[models.RF]; ok {
		params = params.Merge(p)
	}
	m, err := models.Build(models.RF, params)
	if err != nil {
		return nil, err
	}
	rf := m.(*ensemble.RandomForestRegressor)
	if err := rf.Fit(ds.XTrain, ds.YTrain); err != nil {
		return nil, err
	}

	predCal, widthsCal, err := meanAndWidths(rf, XCal)
	if err != nil {
		return nil, err
	}
	var opts []calibration.Option
	if c.Target > 0 {
		opts = append(opts, calibration.WithTarget(c.Target))
	}
	if c.Tol > 0 {
		opts = append(opts, calibration.WithTol(c.Tol))
	}
	if c.CMax > 0 {
		opts = append(opts, calibration.WithCMax(c.CMax))
	}
	if c.MaxIters > 0 {
		opts = append(opts, calibration.WithMaxIters(c.MaxIters))
	}
	yc := values(yCal)
	scale, err := calibration.FindMinScale(yc, predCal, widthsCal, opts...)
	if err != nil {
		return nil, err
	}
	calCov, err := calibration.EmpiricalCoverage(scale, yc, predCal, widthsCal)
	if err != nil {
		return nil, err
	}

	predEval, widthsEval, err := meanAndWidths(rf, XEval)
	if err != nil {
		return nil, err
	}
	testCov, err := calibration.EmpiricalCoverage(scale, values(yEval), predEval, widthsEval)
	if err != nil {
		return nil, err
	}

	log.GetLoggerWithName("bratbench").Info("Calibration completed",
		log.DatasetKey, e.Name,
		log.OperationKey, log.OperationCalibrate,
		log.CoverageKey, testCov,
		"scale", scale,
	)
	return &calibrationReport{Scale: scale, CalibrationCoverage: calCov, TestCoverage: testCov}, nil
}

// calibrationSplit returns the calibration rows and the rows coverage is
// reported on. Without a calibration set the test split is halved, which
// needs at least two test rows.
func calibrationSplit(ds *datasets.Dataset) (XCal *mat.Dense, yCal *mat.VecDense, XEval *mat.Dense, yEval *mat.VecDense, err error) {
	if ds.XCal != nil {
		return ds.XCal, ds.YCal, ds.XTest, ds.YTest, nil
	}
	n, p := ds.XTest.Dims()
	if n < 2 {
		return nil, nil, nil, nil, errors.NewValidationError("n_test",
			"at least 2 test rows are needed to split off a calibration set", n)
	}
	h := n / 2
	XCal = ds.XTest.Slice(0, h, 0, p).(*mat.Dense)
	yCal = ds.YTest.SliceVec(0, h).(*mat.VecDense)
	XEval = ds.XTest.Slice(h, n, 0, p).(*mat.Dense)
	yEval = ds.YTest.SliceVec(h, n).(*mat.VecDense)
	return XCal, yCal, XEval, yEval, nil
}

func meanAndWidths(rf *ensemble.RandomForestRegressor, X mat.Matrix) ([]float64, []float64, error) {
	preds, err := rf.EstimatorPredictions(X)
	if err != nil {
		return nil, nil, err
	}
	widths, err := calibration.EnsembleWidths(preds)
	if err != nil {
		return nil, nil, err
	}
	mean := make([]float64, len(widths))
	for _, p := range preds {
		for i, v := range p {
			mean[i] += v / float64(len(preds))
		}
	}
	return mean, widths, nil
}

func values(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
