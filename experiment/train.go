// Package experiment trains every configured model family on a dataset and
// records test-MSE trajectories over the ensemble size.
package experiment

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/core/model"
	"github.com/YuminosukeSato/bratbench/datasets"
	"github.com/YuminosukeSato/bratbench/metrics"
	"github.com/YuminosukeSato/bratbench/models"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
	"github.com/YuminosukeSato/bratbench/tuning"
)

// Options configures TrainAll.
type Options struct {
	// Epoch is the ensemble size used when tuning tree families.
	Epoch  int
	Tune   bool
	Models []string
	// Manual hyperparameters take precedence over tuned ones.
	Manual  map[string]models.Params
	Trials  int
	Workers int
	Seed    uint64
	Run     int
}

// ModelNames returns Models followed by the manual config keys that are not
// already listed, in sorted order, without duplicates.
func (o Options) ModelNames() []string {
	names := make([]string, 0, len(o.Models)+len(o.Manual))
	for _, n := range o.Models {
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	extra := make([]string, 0, len(o.Manual))
	for n := range o.Manual {
		if !slices.Contains(names, n) {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// TrainAll tunes (or takes from Manual) the hyperparameters of every model,
// fits it on the training split and returns the test-MSE trajectory per
// model together with the parameters used. Single-shot models produce a
// one-element trajectory. Unsupported model names are logged and skipped.
func TrainAll(ctx context.Context, ds *datasets.Dataset, opts Options) (map[string][]float64, map[string]models.Params, error) {
	out, err := trainAll(ctx, ds, opts)
	if err != nil {
		return nil, nil, err
	}
	return out.mse, out.params, nil
}

// trained holds everything TrainAll learns about one run.
type trained struct {
	mse     map[string][]float64
	params  map[string]models.Params
	summary map[string]ModelSummary
}

func trainAll(ctx context.Context, ds *datasets.Dataset, opts Options) (*trained, error) {
	logger := log.GetLoggerWithName("experiment").With(log.RunKey, opts.Run)
	names := opts.ModelNames()

	var supported []string
	for _, name := range names {
		if models.Supported(name) {
			supported = append(supported, name)
			continue
		}
		logger.Warn("Model not supported for training", log.ModelNameKey, name, log.ErrorCodeKey, log.ErrorUnsupportedModel)
	}

	params := make(map[string]models.Params, len(supported))
	if opts.Tune {
		tuned, err := tuning.TuneAll(ctx, supported, ds.XTrain, ds.YTrain, opts.Epoch, opts.Manual,
			tuning.WithTrials(trialsOrDefault(opts.Trials)),
			tuning.WithWorkers(opts.Workers),
			tuning.WithSeed(opts.Seed),
		)
		if err != nil {
			return nil, err
		}
		params = tuned
	}
	for name, p := range opts.Manual {
		params[name] = p.Clone()
	}

	out := &trained{
		mse:     make(map[string][]float64, len(supported)),
		params:  make(map[string]models.Params, len(supported)),
		summary: make(map[string]ModelSummary, len(supported)),
	}
	for _, name := range supported {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, ok := params[name]
		if !ok {
			return nil, errors.NewValidationError(name, "no hyperparameters: enable tuning or add a manual config", nil)
		}

		start := time.Now()
		fit, err := trainOne(name, p, ds)
		if err != nil {
			return nil, errors.Wrapf(err, "training %s", name)
		}
		sum, err := summarize(fit, ds.YTest)
		if err != nil {
			return nil, errors.Wrapf(err, "scoring %s", name)
		}
		out.mse[name] = fit.curve
		out.params[name] = p
		out.summary[name] = sum

		attrs := []any{
			log.ModelNameKey, name,
			log.StagesKey, len(fit.curve),
			log.MSEKey, fit.curve[len(fit.curve)-1],
			log.RMSEKey, sum.RMSE,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		}
		if s, ok := fit.model.(fmt.Stringer); ok {
			attrs = append(attrs, log.EstimatorKey, s.String())
		}
		logger.Info("Training completed", attrs...)
	}
	return out, nil
}

func trialsOrDefault(n int) int {
	if n <= 0 {
		return 20
	}
	return n
}

// fitted is a trained model with its test-MSE trajectory and final test
// predictions.
type fitted struct {
	model model.Regressor
	curve []float64
	pred  *mat.VecDense
}

// trainOne fits one model and extracts its test-MSE trajectory.
func trainOne(name string, p models.Params, ds *datasets.Dataset) (*fitted, error) {
	m, err := models.Build(name, p)
	if err != nil {
		return nil, err
	}
	fit := &fitted{model: m}

	switch name {
	case models.BRATD, models.Boulevard, models.BRATP:
		ef, ok := m.(model.EvalFitter)
		if !ok {
			return nil, errors.Newf("%s does not report evaluation curves", name)
		}
		if fit.curve, err = ef.FitEval(ds.XTrain, ds.YTrain, ds.XTest, ds.YTest); err != nil {
			return nil, err
		}
	default:
		if err := m.Fit(ds.XTrain, ds.YTrain); err != nil {
			return nil, err
		}
		if sp, ok := m.(model.StagedPredictor); ok {
			if fit.curve, err = stagedMSE(sp, ds.XTest, ds.YTest); err != nil {
				return nil, err
			}
		}
	}

	if fit.pred, err = m.Predict(ds.XTest); err != nil {
		return nil, err
	}
	if len(fit.curve) == 0 {
		mse, err := metrics.MSE(ds.YTest, fit.pred)
		if err != nil {
			return nil, err
		}
		fit.curve = []float64{mse}
	}
	return fit, nil
}

func stagedMSE(sp model.StagedPredictor, X mat.Matrix, y *mat.VecDense) ([]float64, error) {
	var curve []float64
	var inner error
	err := sp.StagedPredict(X, func(_ int, pred *mat.VecDense) bool {
		mse, err := metrics.MSE(y, pred)
		if err != nil {
			inner = err
			return false
		}
		curve = append(curve, mse)
		return true
	})
	if err != nil {
		return nil, err
	}
	return curve, inner
}
