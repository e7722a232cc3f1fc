package model

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	scigoErrors "github.com/YuminosukeSato/bratbench/pkg/errors"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("GBT", "Predict")
	var nf *scigoErrors.NotFittedError
	require.True(t, scigoErrors.As(err, &nf))
	assert.Equal(t, "GBT", nf.ModelName)

	s.SetDimensions(7, 100)
	s.SetFitted()
	require.NoError(t, s.RequireFitted("GBT", "Predict"))

	p, n := s.GetDimensions()
	assert.Equal(t, 7, p)
	assert.Equal(t, 100, n)

	err = s.CheckPredictInput("GBT", mat.NewDense(2, 3, nil))
	var de *scigoErrors.DimensionError
	require.True(t, scigoErrors.As(err, &de))
	assert.Equal(t, 7, de.Expected)
	assert.Equal(t, 3, de.Got)

	s.Reset()
	assert.False(t, s.IsFitted())
}

func TestCheckXY(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})

	t.Run("column vector", func(t *testing.T) {
		n, p, y, err := CheckXY("fit", X, mat.NewVecDense(3, []float64{1, 2, 3}))
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, 2, p)
		assert.Equal(t, []float64{1, 2, 3}, y)
	})

	t.Run("row vector", func(t *testing.T) {
		_, _, y, err := CheckXY("fit", X, mat.NewDense(1, 3, []float64{4, 5, 6}))
		require.NoError(t, err)
		assert.Equal(t, []float64{4, 5, 6}, y)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, _, _, err := CheckXY("fit", X, mat.NewVecDense(2, []float64{1, 2}))
		var de *scigoErrors.DimensionError
		assert.True(t, scigoErrors.As(err, &de))
	})
}

func TestRows(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, Rows(X))
	assert.Equal(t, [][]float64{{1, 3}, {2, 4}}, Rows(X.T()))
}

func TestJSONRoundTrip(t *testing.T) {
	type result struct {
		MSE []float64 `json:"mse"`
	}
	path := filepath.Join(t.TempDir(), "nested", "r.json")
	require.NoError(t, SaveJSON(result{MSE: []float64{1.5, 0.5}}, path))

	var got result
	require.NoError(t, LoadJSON(&got, path))
	assert.Equal(t, []float64{1.5, 0.5}, got.MSE)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(got, &buf))
	assert.Contains(t, buf.String(), `"mse"`)
}
