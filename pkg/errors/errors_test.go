package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "bratbench: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			wantMsg: "bratbench: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// stack trace points at this file
			assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 7, 5, 1)
	assert.Equal(t, "bratbench: Predict: dimension mismatch on axis 1 (features). Expected 7, got 5", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 7, dimErr.Expected)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("BRATD", "Predict")
	assert.Equal(t, "bratbench: BRATD: this model is not fitted yet. Call Fit() before using Predict()", err.Error())

	var notFitted *NotFittedError
	assert.True(t, As(err, &notFitted))
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("dropout_rate", "must be in [0, 1)", 1.5)
	assert.Equal(t, "bratbench: validation failed for parameter 'dropout_rate': must be in [0, 1) (got: 1.5)", err.Error())
}

func TestConvergenceWarningRoutedToHandler(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	t.Cleanup(func() { SetZerologWarnFunc(nil) })

	Warn(NewConvergenceWarning("ElasticNet", 1000, ""))

	require.Len(t, got, 1)
	assert.Contains(t, got[0].Error(), "ElasticNet failed to converge after 1000 iterations")
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Predict", 10, 5)

	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.True(t, strings.Contains(wrapped.Error(), "in Predict: expected 10, got 5"))
}

func TestCheckNumericalStability(t *testing.T) {
	require.NoError(t, CheckNumericalStability("residuals", []float64{1, 2, 3}, 0))

	err := CheckNumericalStability("residuals", []float64{1, math.NaN(), 3}, 4)
	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Equal(t, 4, numErr.Iteration)
	assert.Len(t, numErr.Values, 1)
}

func TestRecover(t *testing.T) {
	t.Run("panic becomes error", func(t *testing.T) {
		fn := func() (err error) {
			defer Recover(&err, "TreeFit")
			panic("index out of range")
		}
		err := fn()

		var panicErr *PanicError
		require.True(t, As(err, &panicErr))
		assert.Equal(t, "panic in TreeFit: index out of range", panicErr.Error())
		assert.NotEmpty(t, panicErr.StackTrace)
	})

	t.Run("existing error is kept", func(t *testing.T) {
		base := fmt.Errorf("original error")
		fn := func() (err error) {
			defer Recover(&err, "TreeFit")
			err = base
			panic("boom")
		}
		err := fn()
		assert.ErrorIs(t, err, base)
		assert.Contains(t, err.Error(), "panic in TreeFit")
	})

	t.Run("no panic", func(t *testing.T) {
		assert.NoError(t, SafeExecute("noop", func() error { return nil }))
	})
}
