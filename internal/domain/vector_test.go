package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical unit vectors", []float32{1, 0}, []float32{1, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero vector yields no match", []float32{0, 0}, []float32{1, 0}, 0.0},
		{"empty operand", nil, []float32{1, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosine_MismatchedLengths(t *testing.T) {
	// Compared over the shorter prefix, never panics.
	sim := Cosine([]float32{1, 0, 0}, []float32{1, 0})
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestL2Normalize(t *testing.T) {
	v := []float32{3, 4}
	L2Normalize(v)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-6)
}

func TestL2Normalize_ZeroVector(t *testing.T) {
	v := []float32{0, 0}
	L2Normalize(v)
	assert.Equal(t, []float32{0, 0}, v)
}

func TestDomainError(t *testing.T) {
	err := NewDomainError(ErrCodeRetrieval, "boom")
	assert.Equal(t, "[RETRIEVAL_FAILURE] boom", err.Error())

	wrapped := NewDomainErrorWithCause(ErrCodeGeneration, "generate failed", assert.AnError)
	assert.Contains(t, wrapped.Error(), "generate failed")
	assert.ErrorIs(t, wrapped, assert.AnError)
}
