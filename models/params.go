package models

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

// Params holds the hyperparameters of one model family. Values come from
// the tuner, HCL files or JSON results, so numbers may be any Go numeric
// type or json.Number.
type Params map[string]interface{}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns p overridden by other.
func (p Params) Merge(other Params) Params {
	out := p.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Has reports whether key is set.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Float returns p[key] or def when unset.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, errors.NewValidationError(key, "must be a number", v)
	}
	return f, nil
}

// Int returns p[key] or def when unset. Integral floats are accepted.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, errors.NewValidationError(key, "must be an integer", v)
	}
	return int(f), nil
}

// Require fails on the first missing key.
func (p Params) Require(model string, keys ...string) error {
	for _, k := range keys {
		if !p.Has(k) {
			return errors.NewValidationError(k, fmt.Sprintf("required by %s", model), nil)
		}
	}
	return nil
}

// checkKnown fails on keys outside allowed.
func (p Params) checkKnown(model string, allowed []string) error {
	for k := range p {
		if !slices.Contains(allowed, k) {
			return errors.NewValidationError(k, fmt.Sprintf("unknown parameter for %s", model), p[k])
		}
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}
