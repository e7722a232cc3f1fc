package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/datasets"
	"github.com/YuminosukeSato/bratbench/experiment"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	src := fmt.Sprintf(`
experiment "tiny" {
  epoch      = 5
  runs       = 2
  tune       = false
  output_dir = %q
  plot_dir   = %q

  synthetic {
    function      = "friedman1"
    n_train       = 150
    n_test        = 60
    n_calibration = 200
  }

  model "GBT" {
    n_estimators = 5
    max_depth    = 2
  }

  model "ElasticNet" {
    alpha = 0.1
  }

  model "RF" {
    n_estimators = 20
    max_depth    = 4
  }

  calibration {
    target = 0.9
  }
}
`, filepath.Join(dir, "results"), filepath.Join(dir, "plots"))
	path := filepath.Join(dir, "tiny.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRunWritesResultsAndPlot(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	out, err := execute(t, "run", "-c", cfg, "--runs", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "tiny: results written to")

	res, err := experiment.LoadResults(filepath.Join(dir, "results", "results_tiny.json"))
	require.NoError(t, err)
	require.Len(t, res.Runs, 1)
	assert.Len(t, res.Runs[0].MSE["GBT"], 5)
	assert.Len(t, res.Runs[0].MSE["ElasticNet"], 1)
	assert.Len(t, res.Runs[0].MSE["RF"], 20)

	_, err = os.Stat(filepath.Join(dir, "plots", "mse_trajectories_tiny.png"))
	assert.NoError(t, err)
}

func TestRunOverridesAndPlotCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	results := filepath.Join(dir, "other")

	_, err := execute(t, "run", "-c", cfg, "-e", "tiny", "--no-plot", "--output-dir", results)
	require.NoError(t, err)
	path := filepath.Join(results, "results_tiny.json")
	res, err := experiment.LoadResults(path)
	require.NoError(t, err)
	assert.Len(t, res.Runs, 2)
	_, err = os.Stat(filepath.Join(dir, "plots"))
	assert.True(t, os.IsNotExist(err))

	plots := filepath.Join(dir, "replot")
	out, err := execute(t, "plot", path, "--plot-dir", plots)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(plots, "mse_trajectories_tiny.png"))
}

func TestRunUnknownExperiment(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())
	_, err := execute(t, "run", "-c", cfg, "-e", "missing")
	assert.Error(t, err)
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}

func TestCalibrate(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())
	out, err := execute(t, "calibrate", "-c", cfg, "-e", "tiny")
	require.NoError(t, err)

	m := regexp.MustCompile(`scale=([0-9.]+) calibration_coverage=([0-9.]+) test_coverage=([0-9.]+)`).FindStringSubmatch(out)
	require.Len(t, m, 4, out)
	scale, _ := strconv.ParseFloat(m[1], 64)
	calCov, _ := strconv.ParseFloat(m[2], 64)
	assert.Greater(t, scale, 0.0)
	assert.GreaterOrEqual(t, calCov, 0.9)
}

func TestCalibrationSplit(t *testing.T) {
	ds := &datasets.Dataset{
		XTest: mat.NewDense(5, 2, nil),
		YTest: mat.NewVecDense(5, []float64{1, 2, 3, 4, 5}),
	}
	XCal, yCal, XEval, yEval, err := calibrationSplit(ds)
	require.NoError(t, err)
	r, _ := XCal.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, []float64{1, 2}, values(yCal))
	r, _ = XEval.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, []float64{3, 4, 5}, values(yEval))

	ds = &datasets.Dataset{
		XTest: mat.NewDense(1, 2, nil),
		YTest: mat.NewVecDense(1, []float64{1}),
	}
	_, _, _, _, err = calibrationSplit(ds)
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, "n_test", ve.ParamName)
}

func TestBadLogFormat(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--log-format", "xml", "plot", "x.json"})
	assert.Error(t, root.Execute())
}
