package tuning

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bratbench/core/sampling"
	"github.com/YuminosukeSato/bratbench/models"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
)

// Config controls a tuning session.
type Config struct {
	Trials  int
	Workers int
	Seed    uint64
}

// Option configures TuneAll.
type Option func(*Config)

// WithTrials sets the number of trials per model (default 20).
func WithTrials(n int) Option {
	return func(c *Config) { c.Trials = n }
}

// WithWorkers sets the goroutines sharing one study; n <= 0 uses every
// core.
func WithWorkers(n int) Option {
	return func(c *Config) { c.Workers = n }
}

// WithSeed seeds the subsample and the TPE sampler.
func WithSeed(seed uint64) Option {
	return func(c *Config) { c.Seed = seed }
}

func newConfig(opts []Option) Config {
	c := Config{Trials: 20, Seed: 42}
	for _, opt := range opts {
		opt(&c)
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Workers > c.Trials {
		c.Workers = c.Trials
	}
	return c
}

// SharedEstimators returns the n_estimators common to all manual configs,
// or fallback when none sets it. Disagreeing values are an error.
func SharedEstimators(manual map[string]models.Params, fallback int) (int, error) {
	shared, found := 0, false
	for name, p := range manual {
		if !p.Has("n_estimators") {
			continue
		}
		n, err := p.Int("n_estimators", 0)
		if err != nil {
			return 0, errors.Wrapf(err, "manual config for %s", name)
		}
		if found && n != shared {
			return 0, errors.NewValidationError("n_estimators",
				fmt.Sprintf("all manual configs must agree, found %d and %d", shared, n), n)
		}
		shared, found = n, true
	}
	if !found {
		return fallback, nil
	}
	return shared, nil
}

// TuneAll returns the hyperparameters of every model in names. Models with
// a manual config use it unchanged; the others are tuned by a TPE study
// minimising the objective of GetObjective, and tree families get
// n_estimators set to the shared manual value, or epoch without one.
func TuneAll(ctx context.Context, names []string, X, y mat.Matrix, epoch int, manual map[string]models.Params, opts ...Option) (map[string]models.Params, error) {
	cfg := newConfig(opts)
	if cfg.Trials < 1 {
		return nil, errors.NewValidationError("n_trials", "must be at least 1", cfg.Trials)
	}
	nEstimators, err := SharedEstimators(manual, epoch)
	if err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("tuning")
	best := make(map[string]models.Params, len(names))
	for k, name := range names {
		if p, ok := manual[name]; ok {
			logger.Info("Using manual hyperparameters", log.ModelNameKey, name)
			best[name] = p.Clone()
			continue
		}

		params, value, err := Tune(ctx, name, X, y, nEstimators, cfg, sampling.DeriveSeed(cfg.Seed, k))
		if err != nil {
			return nil, errors.Wrapf(err, "tuning %s", name)
		}
		if models.UsesEstimators(name) {
			params["n_estimators"] = nEstimators
		}
		logger.Info("Tuning completed",
			log.ModelNameKey, name,
			log.BestValueKey, value,
			log.HyperParamsKey, fmt.Sprint(map[string]interface{}(params)),
		)
		best[name] = params
	}
	return best, nil
}

// Tune runs one study for family name and returns its best parameters and
// objective value.
func Tune(ctx context.Context, name string, X, y mat.Matrix, epoch int, cfg Config, seed uint64) (models.Params, float64, error) {
	objective, err := GetObjective(name, epoch, X, y, seed)
	if err != nil {
		return nil, 0, err
	}

	logger := log.GetLoggerWithName("tuning").With(log.ModelNameKey, name)
	study, err := goptuna.CreateStudy(
		fmt.Sprintf("bratbench-%s", name),
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(int64(seed)))),
		goptuna.StudyOptionLogger(logger),
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, "create study")
	}

	start := time.Now()
	eg, egCtx := errgroup.WithContext(ctx)
	study.WithContext(egCtx)
	for w := 0; w < cfg.Workers; w++ {
		trials := cfg.Trials / cfg.Workers
		if w < cfg.Trials%cfg.Workers {
			trials++
		}
		eg.Go(func() error {
			return study.Optimize(objective, trials)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}

	value, err := study.GetBestValue()
	if err != nil {
		return nil, 0, errors.Wrap(err, "no successful trial")
	}
	raw, err := study.GetBestParams()
	if err != nil {
		return nil, 0, errors.Wrap(err, "no successful trial")
	}
	logger.Debug("Study finished",
		log.OperationKey, log.OperationTune,
		log.TrialsKey, cfg.Trials,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	params := models.Params(raw)
	for k, v := range params {
		params[k] = normalise(v)
	}
	return params, value, nil
}

// normalise maps goptuna's external representations onto float64 and int.
func normalise(v interface{}) interface{} {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case int64:
		return int(x)
	}
	return v
}
