package preprocessing

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/bratbench/pkg/errors"
)

// LabelEncoder maps string labels to 0..k-1 in sorted label order.
type LabelEncoder struct {
	Classes []string
	index   map[string]int
}

// NewLabelEncoder returns an unfitted encoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit learns the sorted set of distinct labels.
func (e *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	e.Classes = uniqueSorted(labels)
	e.index = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		e.index[c] = i
	}
	return nil
}

// Transform encodes labels. Labels not seen in Fit are an error.
func (e *LabelEncoder) Transform(labels []string) ([]float64, error) {
	if e.index == nil {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}
	out := make([]float64, len(labels))
	for i, l := range labels {
		code, ok := e.index[l]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", fmt.Sprintf("y contains previously unseen label %q", l))
		}
		out[i] = float64(code)
	}
	return out, nil
}

// FitTransform fits on labels and encodes them.
func (e *LabelEncoder) FitTransform(labels []string) ([]float64, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// Dummies expands a categorical column into one indicator column per
// distinct value, named "<name>_<value>" in sorted value order.
func Dummies(name string, values []string) (names []string, columns [][]float64) {
	categories := uniqueSorted(values)
	index := make(map[string]int, len(categories))
	names = make([]string, len(categories))
	columns = make([][]float64, len(categories))
	for k, c := range categories {
		index[c] = k
		names[k] = name + "_" + c
		columns[k] = make([]float64, len(values))
	}
	for i, v := range values {
		columns[index[v]][i] = 1
	}
	return names, columns
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
