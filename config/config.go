// Package config decodes HCL experiment files.
//
//	experiment "friedman1" {
//	  epoch  = 100
//	  runs   = 5
//	  models = ["GBT", "XGBoost", "BRATD"]
//
//	  synthetic {
//	    function = "friedman1"
//	  }
//
//	  model "BRATD" {
//	    n_estimators   = 100
//	    learning_rate  = 1.0
//	    max_depth      = 3
//	    dropout_rate   = 0.1
//	    subsample_rate = 0.8
//	  }
//	}
package config

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/YuminosukeSato/bratbench/datasets"
	"github.com/YuminosukeSato/bratbench/models"
	"github.com/YuminosukeSato/bratbench/pkg/errors"
	"github.com/YuminosukeSato/bratbench/pkg/log"
)

// Defaults applied to omitted experiment attributes.
const (
	DefaultEpoch     = 100
	DefaultRuns      = 1
	DefaultTrials    = 20
	DefaultSeed      = 42
	DefaultOutputDir = "results"
	DefaultPlotDir   = "plots"
)

// File is the top level of an experiment file.
type File struct {
	Experiments []*Experiment `hcl:"experiment,block"`
}

// Experiment describes one benchmark: a data source, the model families and
// how many repetitions to run.
type Experiment struct {
	Name      string   `hcl:"name,label"`
	Epoch     int      `hcl:"epoch,optional"`
	Runs      int      `hcl:"runs,optional"`
	Seed      *int     `hcl:"seed,optional"`
	Tune      *bool    `hcl:"tune,optional"`
	Trials    int      `hcl:"trials,optional"`
	Workers   int      `hcl:"workers,optional"`
	Models    []string `hcl:"models,optional"`
	OutputDir string   `hcl:"output_dir,optional"`
	PlotDir   string   `hcl:"plot_dir,optional"`
	Title     string   `hcl:"title,optional"`

	Synthetic    *Synthetic    `hcl:"synthetic,block"`
	UCI          *UCI          `hcl:"uci,block"`
	Calibration  *Calibration  `hcl:"calibration,block"`
	ModelConfigs []*ModelBlock `hcl:"model,block"`

	// Manual is filled from ModelConfigs by Load.
	Manual map[string]models.Params
}

// Synthetic selects a generated dataset.
type Synthetic struct {
	Function     string   `hcl:"function"`
	NTrain       int      `hcl:"n_train,optional"`
	NTest        int      `hcl:"n_test,optional"`
	NCalibration int      `hcl:"n_calibration,optional"`
	NoiseStd     *float64 `hcl:"noise_std,optional"`
}

// UCI selects a repository dataset, or a local CSV when File is set.
type UCI struct {
	ID           int      `hcl:"id"`
	TargetColumn string   `hcl:"target_column,optional"`
	TestSize     float64  `hcl:"test_size,optional"`
	Normalize    *bool    `hcl:"normalize,optional"`
	File         string   `hcl:"file,optional"`
	IDColumns    []string `hcl:"id_columns,optional"`
	BaseURL      string   `hcl:"base_url,optional"`
}

// Calibration configures interval calibration. Widths come from the spread
// of the random forest's trees, the only supported Model.
type Calibration struct {
	Model    string  `hcl:"model,optional"`
	Target   float64 `hcl:"target,optional"`
	Tol      float64 `hcl:"tol,optional"`
	CMax     float64 `hcl:"c_max,optional"`
	MaxIters int     `hcl:"max_iters,optional"`
}

// ModelBlock holds hyperparameters of one family as free attributes.
type ModelBlock struct {
	Name   string   `hcl:"name,label"`
	Remain hcl.Body `hcl:",remain"`
}

// Load parses and decodes path.
func Load(path string) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "parse %s", path)
	}
	return decode(path, f.Body)
}

// Parse decodes src as if read from filename.
func Parse(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "parse %s", filename)
	}
	return decode(filename, f.Body)
}

func decode(name string, body hcl.Body) (*File, error) {
	var file File
	if diags := gohcl.DecodeBody(body, nil, &file); diags.HasErrors() {
		return nil, errors.Wrapf(diags, "decode %s", name)
	}
	seen := make(map[string]bool, len(file.Experiments))
	for _, e := range file.Experiments {
		if seen[e.Name] {
			return nil, errors.NewValidationError("experiment", "duplicate name", e.Name)
		}
		seen[e.Name] = true
		if err := e.finish(); err != nil {
			return nil, errors.Wrapf(err, "experiment %q", e.Name)
		}
	}
	log.GetLoggerWithName("config").Debug("Config loaded", "path", name, "experiments", len(file.Experiments))
	return &file, nil
}

// Experiment returns the experiment called name.
func (f *File) Experiment(name string) (*Experiment, error) {
	for _, e := range f.Experiments {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, errors.NewValueError("config", fmt.Sprintf("no experiment named %q", name))
}

// Names lists the experiments in file order.
func (f *File) Names() []string {
	out := make([]string, len(f.Experiments))
	for i, e := range f.Experiments {
		out[i] = e.Name
	}
	return out
}

func (e *Experiment) finish() error {
	if e.Epoch == 0 {
		e.Epoch = DefaultEpoch
	}
	if e.Runs == 0 {
		e.Runs = DefaultRuns
	}
	if e.Trials == 0 {
		e.Trials = DefaultTrials
	}
	if e.OutputDir == "" {
		e.OutputDir = DefaultOutputDir
	}
	if e.PlotDir == "" {
		e.PlotDir = DefaultPlotDir
	}
	if e.Epoch < 1 || e.Runs < 1 || e.Trials < 1 {
		return errors.NewValidationError("epoch/runs/trials", "must be positive", [3]int{e.Epoch, e.Runs, e.Trials})
	}
	if (e.Synthetic == nil) == (e.UCI == nil) {
		return errors.NewValidationError("source", "exactly one of synthetic or uci is required", e.Name)
	}
	if e.Synthetic != nil {
		if _, err := datasets.LookupFunction(e.Synthetic.Function); err != nil {
			return err
		}
	}

	if c := e.Calibration; c != nil {
		if c.Model == "" {
			c.Model = models.RF
		}
		if c.Model != models.RF {
			return errors.NewValidationError("calibration.model", "only RF provides member spreads", c.Model)
		}
	}

	e.Manual = make(map[string]models.Params, len(e.ModelConfigs))
	for _, mb := range e.ModelConfigs {
		if _, dup := e.Manual[mb.Name]; dup {
			return errors.NewValidationError("model", "duplicate block", mb.Name)
		}
		p, err := blockParams(mb.Remain)
		if err != nil {
			return errors.Wrapf(err, "model %q", mb.Name)
		}
		e.Manual[mb.Name] = p
	}
	return nil
}

// SeedValue returns the configured seed or DefaultSeed.
func (e *Experiment) SeedValue() uint64 {
	if e.Seed == nil {
		return DefaultSeed
	}
	return uint64(*e.Seed)
}

// TuneEnabled reports whether hyperparameters are searched. Tuning is on
// unless disabled explicitly.
func (e *Experiment) TuneEnabled() bool { return e.Tune == nil || *e.Tune }

// ModelNames returns Models, or the manual block names when Models is empty.
func (e *Experiment) ModelNames() []string {
	if len(e.Models) > 0 {
		return e.Models
	}
	names := make([]string, 0, len(e.Manual))
	for n := range e.Manual {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SyntheticConfig merges the block over the generator defaults.
func (s *Synthetic) SyntheticConfig() datasets.SyntheticConfig {
	cfg := datasets.DefaultSyntheticConfig()
	if s.NTrain > 0 {
		cfg.NTrain = s.NTrain
	}
	if s.NTest > 0 {
		cfg.NTest = s.NTest
	}
	cfg.NCalibration = s.NCalibration
	if s.NoiseStd != nil {
		cfg.NoiseStd = *s.NoiseStd
	}
	return cfg
}

// UCIConfig merges the block over the loader defaults.
func (u *UCI) UCIConfig() datasets.UCIConfig {
	cfg := datasets.DefaultUCIConfig()
	cfg.TargetColumn = u.TargetColumn
	if u.TestSize > 0 {
		cfg.TestSize = u.TestSize
	}
	if u.Normalize != nil {
		cfg.Normalize = *u.Normalize
	}
	return cfg
}

// Source returns a file source when File is set, the UCI web API otherwise.
func (u *UCI) Source() datasets.Source {
	if u.File != "" {
		vars := make([]datasets.Variable, 0, len(u.IDColumns)+1)
		if u.TargetColumn != "" {
			vars = append(vars, datasets.Variable{Name: u.TargetColumn, Role: datasets.RoleTarget})
		}
		for _, c := range u.IDColumns {
			vars = append(vars, datasets.Variable{Name: c, Role: datasets.RoleID})
		}
		return &datasets.FileSource{Path: u.File, Variables: vars}
	}
	src := datasets.NewHTTPSource()
	if u.BaseURL != "" {
		src.BaseURL = u.BaseURL
	}
	return src
}

// blockParams evaluates every attribute of a model block.
func blockParams(body hcl.Body) (models.Params, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	p := make(models.Params, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, errors.Wrapf(err, "attribute %s", name)
		}
		p[name] = native
	}
	return p, nil
}

// ctyToNative converts scalars; hyperparameters are never collections.
func ctyToNative(v cty.Value) (interface{}, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Bool:
		return v.True(), nil
	case cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, errors.Wrap(err, "convert number")
		}
		return f, nil
	}
	return nil, errors.Newf("unsupported value type %s", v.Type().FriendlyName())
}
