package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", VectorLiteral(nil))
	assert.Equal(t, "[0.5]", VectorLiteral([]float32{0.5}))
	assert.Equal(t, "[0.25,-1,3]", VectorLiteral([]float32{0.25, -1, 3}))
}

func TestParseVector(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := []float32{0.25, -1.5, 0, 42}
		out, err := ParseVector(VectorLiteral(in))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("whitespace tolerated", func(t *testing.T) {
		out, err := ParseVector(" [ 0.1, 0.2 ] ")
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.InDelta(t, 0.1, out[0], 1e-6)
	})

	t.Run("empty inputs", func(t *testing.T) {
		out, err := ParseVector("")
		require.NoError(t, err)
		assert.Nil(t, out)

		out, err = ParseVector("[]")
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseVector("0.1,0.2")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed vector literal")

		_, err = ParseVector("[0.1,nope]")
		require.Error(t, err)
	})
}

func TestEncodeDecodeVector(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := []float32{0.1, -2.5, 3.75, 0}
		blob := EncodeVector(in)
		require.Len(t, blob, 16)

		out, err := DecodeVector(blob)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("nil round trip", func(t *testing.T) {
		assert.Nil(t, EncodeVector(nil))
		out, err := DecodeVector(nil)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("truncated blob", func(t *testing.T) {
		_, err := DecodeVector([]byte{1, 2, 3})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a multiple of 4")
	})
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, 1.0, Cosine([]float32{2, 2}, []float32{5, 5}), 1e-9)

	// Incomparable or degenerate inputs score 0.
	assert.Zero(t, Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, Cosine(nil, nil))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
}
