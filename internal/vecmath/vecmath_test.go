package vecmath

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	require.InDelta(t, 1.0, Norm(v), 1e-6)
}

func TestCosineIdentical(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	require.InDelta(t, 1.0, Cosine(a, b), 1e-6)
}

func TestCosineOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	require.InDelta(t, 0.0, Cosine(a, b), 1e-6)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := make([]float32, Dim)
	for i := range v {
		v[i] = float32(i) / float32(Dim)
	}
	Normalize(v)

	encoded, err := Encode(v)
	require.NoError(t, err)
	require.Len(t, encoded, Dim*4)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.InDelta(t, 1.0, Norm(decoded), 1e-3)
	for i := range v {
		require.InDelta(t, v[i], decoded[i], 1e-6)
	}
}

func TestEncodeWrongDim(t *testing.T) {
	_, err := Encode([]float32{1, 2, 3})
	require.Error(t, err)
}
