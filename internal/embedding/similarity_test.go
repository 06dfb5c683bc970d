package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{
			name: "identical vectors",
			a:    []float32{0.3, -0.5, 0.8},
			b:    []float32{0.3, -0.5, 0.8},
			want: 1.0,
		},
		{
			name: "opposite vectors",
			a:    []float32{1, 2, 3},
			b:    []float32{-1, -2, -3},
			want: -1.0,
		},
		{
			name: "orthogonal vectors",
			a:    []float32{1, 0},
			b:    []float32{0, 1},
			want: 0,
		},
		{
			name: "scaling does not change similarity",
			a:    []float32{1, 1},
			b:    []float32{5, 5},
			want: 1.0,
		},
		{
			name: "zero vector yields zero",
			a:    []float32{0, 0, 0},
			b:    []float32{1, 2, 3},
			want: 0,
		},
		{
			name: "both zero vectors",
			a:    []float32{0, 0},
			b:    []float32{0, 0},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCosineSimilarityClamped(t *testing.T) {
	// Accumulated float error must never push the result outside [-1, 1].
	a := make([]float32, 512)
	for i := range a {
		a[i] = 0.1
	}
	got, err := CosineSimilarity(a, a)
	require.NoError(t, err)
	assert.LessOrEqual(t, got, 1.0)
	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestEuclideanDistance(t *testing.T) {
	got, err := EuclideanDistance([]float32{0, 0}, []float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got, 1e-6)

	_, err = EuclideanDistance([]float32{1}, []float32{1, 2})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}
