package gbdt

import (
	"math"
	"time"

	"github.com/YuminosukeSato/bratbench/pkg/log"
)

// CallbackEnv is passed to callbacks after every iteration.
type CallbackEnv struct {
	Model        *Model
	Iteration    int
	BeginTime    time.Time
	EndTime      time.Time
	EvalResults  map[string]float64
	StopTraining bool
}

// Callback is invoked by the trainer after each boosting round.
type Callback func(env *CallbackEnv) error

// LogEvaluation logs the evaluation results every period iterations.
func LogEvaluation(period int) Callback {
	logger := log.GetLoggerWithName("gbdt.eval")
	return func(env *CallbackEnv) error {
		if period <= 0 || env.Iteration%period != 0 {
			return nil
		}
		fields := []any{log.IterationKey, env.Iteration}
		for name, value := range env.EvalResults {
			fields = append(fields, name, value)
		}
		logger.Info("Evaluation", fields...)
		return nil
	}
}

// RecordEvaluation appends every result to history.
func RecordEvaluation(history map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		for name, value := range env.EvalResults {
			history[name] = append(history[name], value)
		}
		return nil
	}
}

// EarlyStopping stops training when metric has not improved for rounds
// iterations and records the best iteration on the model.
func EarlyStopping(rounds int, metric string) Callback {
	best := math.Inf(1)
	bestIteration := 0
	stale := 0

	return func(env *CallbackEnv) error {
		value, ok := env.EvalResults[metric]
		if !ok {
			return nil
		}
		if value < best {
			best = value
			bestIteration = env.Iteration
			stale = 0
		} else {
			stale++
		}
		env.Model.BestIteration = bestIteration + 1
		if stale >= rounds {
			log.GetLoggerWithName("gbdt.eval").Debug("Early stopping",
				log.IterationKey, env.Iteration,
				"best_iteration", bestIteration,
				metric, best,
			)
			env.StopTraining = true
		}
		return nil
	}
}

// TimeLimit stops training once maxDuration has elapsed since the first
// iteration.
func TimeLimit(maxDuration time.Duration) Callback {
	var start time.Time
	return func(env *CallbackEnv) error {
		if start.IsZero() {
			start = env.BeginTime
		}
		if env.EndTime.Sub(start) > maxDuration {
			env.StopTraining = true
		}
		return nil
	}
}

// CallbackList runs callbacks in order.
type CallbackList struct {
	callbacks []Callback
	env       *CallbackEnv
}

// NewCallbackList creates a list with an empty environment.
func NewCallbackList(callbacks ...Callback) *CallbackList {
	return &CallbackList{
		callbacks: callbacks,
		env:       &CallbackEnv{EvalResults: make(map[string]float64)},
	}
}

// AfterIteration runs every callback for iteration.
func (cl *CallbackList) AfterIteration(iteration int, begin time.Time, model *Model, evalResults map[string]float64) error {
	cl.env.Iteration = iteration
	cl.env.Model = model
	cl.env.BeginTime = begin
	cl.env.EndTime = time.Now()
	cl.env.EvalResults = evalResults

	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
	}
	return nil
}

// ShouldStop reports whether a callback asked to stop.
func (cl *CallbackList) ShouldStop() bool {
	return cl.env.StopTraining
}
