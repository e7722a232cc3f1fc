package plotting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"
)

func sampleRuns() []map[string][]float64 {
	return []map[string][]float64{
		{"GBT": {4, 2, 1}, "ElasticNet": {3}, "BRATD": {5, 3, 2}},
		{"GBT": {6, 4, 3}, "ElasticNet": {5}, "BRATD": {5, 3, 2}},
	}
}

func TestAggregate(t *testing.T) {
	trs, err := Aggregate(sampleRuns())
	require.NoError(t, err)
	require.Len(t, trs, 3)

	assert.Equal(t, "BRATD", trs[0].Model)
	assert.Equal(t, []float64{5, 3, 2}, trs[0].Mean)
	assert.Equal(t, []float64{0, 0, 0}, trs[0].Std)

	assert.Equal(t, "ElasticNet", trs[1].Model)
	assert.True(t, trs[1].Single())
	assert.Equal(t, 4.0, trs[1].Final())
	assert.InDelta(t, 1, trs[1].Std[0], 1e-12)

	gbt := trs[2]
	assert.Equal(t, []float64{5, 3, 2}, gbt.Mean)
	for _, s := range gbt.Std {
		assert.InDelta(t, 1, s, 1e-12)
	}
}

func TestAggregateRejectsRaggedRuns(t *testing.T) {
	_, err := Aggregate([]map[string][]float64{
		{"GBT": {1, 2}},
		{"GBT": {1}},
	})
	assert.Error(t, err)

	_, err = Aggregate([]map[string][]float64{{"GBT": {}}})
	assert.Error(t, err)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "BRAT-D", Label("BRATD"))
	assert.Equal(t, "BRAT-P", Label("BRATP"))
	assert.Equal(t, "Boulevard", Label("Boulevard"))
}

func TestPlotMeanStdTrajectoriesSaves(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	path, err := PlotMeanStdTrajectories(sampleRuns(), 3, "friedman1", dir, WithTitle("friedman1"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mse_trajectories_friedman1.png"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestDrawOnCallerPlot(t *testing.T) {
	p := plot.New()
	require.NoError(t, Draw(p, sampleRuns(), 3, ""))
	assert.Equal(t, DefaultTitle, p.Title.Text)
	assert.Equal(t, "Ensemble Size", p.X.Label.Text)
	assert.Equal(t, "MSE", p.Y.Label.Text)
	assert.Greater(t, p.X.Max, 3.0)
}

func TestDrawErrors(t *testing.T) {
	assert.Error(t, Draw(plot.New(), nil, 3, ""))
	assert.Error(t, Draw(plot.New(), sampleRuns(), 0, ""))
}
