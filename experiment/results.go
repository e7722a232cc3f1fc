package experiment

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/YuminosukeSato/bratbench/core/model"
	"github.com/YuminosukeSato/bratbench/datasets"
	"github.com/YuminosukeSato/bratbench/models"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
)

// RunResult is the outcome of one repetition.
type RunResult struct {
	Run    int                      `json:"run"`
	Seed   uint64                   `json:"seed"`
	MSE    map[string][]float64     `json:"mse"`
	Params map[string]models.Params `json:"params"`
	// Final holds the test scores of the fully grown model and the
	// hyperparameters the estimator reports after construction.
	Final map[string]ModelSummary `json:"final,omitempty"`
}

// Results collects every repetition of one experiment.
type Results struct {
	DatasetID string      `json:"dataset_id"`
	Epoch     int         `json:"epoch"`
	CreatedAt time.Time   `json:"created_at"`
	Runs      []RunResult `json:"runs"`
}

// MSERuns returns the per-run trajectories in run order.
func (r *Results) MSERuns() []map[string][]float64 {
	out := make([]map[string][]float64, len(r.Runs))
	for i, run := range r.Runs {
		out[i] = run.MSE
	}
	return out
}

// DataFunc produces the dataset of one repetition.
type DataFunc func(ctx context.Context, run int, seed uint64) (*datasets.Dataset, error)

// FromSynthetic regenerates function data for every run with the run seed.
func FromSynthetic(function string, opts ...datasets.SyntheticOption) DataFunc {
	return func(_ context.Context, _ int, seed uint64) (*datasets.Dataset, error) {
		all := append(slices.Clone(opts), datasets.WithSeed(seed))
		return datasets.Generate(function, all...)
	}
}

// FromUCI loads dataset id once per run, splitting with the run seed.
func FromUCI(src datasets.Source, id int, cfg datasets.UCIConfig) DataFunc {
	return func(ctx context.Context, _ int, seed uint64) (*datasets.Dataset, error) {
		c := cfg
		c.RandomState = seed
		d, err := datasets.LoadUCI(ctx, src, id, c)
		if err != nil {
			return nil, err
		}
		return &d.Dataset, nil
	}
}

// RunRepeated runs TrainAll nRuns times. Run k draws its data with seed
// opts.Seed+k and tunes with the same seed.
func RunRepeated(ctx context.Context, datasetID string, nRuns int, data DataFunc, opts Options) (*Results, error) {
	if nRuns < 1 {
		return nil, errors.NewValidationError("runs", "must be at least 1", nRuns)
	}
	logger := log.GetLoggerWithName("experiment").With(log.DatasetKey, datasetID)

	res := &Results{
		DatasetID: datasetID,
		Epoch:     opts.Epoch,
		CreatedAt: time.Now().UTC(),
		Runs:      make([]RunResult, 0, nRuns),
	}
	for k := 0; k < nRuns; k++ {
		seed := opts.Seed + uint64(k)
		logger.Info("Run started", log.RunKey, k+1, log.RandomSeedKey, seed)

		ds, err := data(ctx, k, seed)
		if err != nil {
			return nil, errors.Wrapf(err, "run %d data", k+1)
		}
		runOpts := opts
		runOpts.Run = k + 1
		runOpts.Seed = seed
		out, err := trainAll(ctx, ds, runOpts)
		if err != nil {
			return nil, errors.Wrapf(err, "run %d", k+1)
		}
		res.Runs = append(res.Runs, RunResult{
			Run:    k + 1,
			Seed:   seed,
			MSE:    out.mse,
			Params: out.params,
			Final:  out.summary,
		})
	}
	return res, nil
}

// ResultsPath is the JSON file for datasetID under dir.
func ResultsPath(dir, datasetID string) string {
	return filepath.Join(dir, fmt.Sprintf("results_%s.json", datasetID))
}

// Save writes r to ResultsPath(dir, r.DatasetID).
func (r *Results) Save(dir string) (string, error) {
	path := ResultsPath(dir, r.DatasetID)
	if err := model.SaveJSON(r, path); err != nil {
		return "", err
	}
	return path, nil
}

// LoadResults reads a results file written by Save.
func LoadResults(path string) (*Results, error) {
	var r Results
	if err := model.LoadJSON(&r, path); err != nil {
		return nil, err
	}
	return &r, nil
}
