// Package vecmath provides the small set of vector operations the face
// learning subsystem and search planner share: L2 normalization, cosine
// similarity, and the fixed-width byte encoding used to persist 512-D
// embeddings in the catalog.
package vecmath

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Dim is the embedding width used throughout gaze-engine (image, text,
// and face embeddings all share this space).
const Dim = 512

// Normalize L2-normalizes v in place. A zero vector is left unchanged.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	inv := float32(1 / norm)
	for i := range v {
		v[i] *= inv
	}
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b, clamped to [-1, 1].
// Vectors of mismatched length return 0.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	dot /= math.Sqrt(na * nb)
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return float32(dot)
}

// Dot returns the plain inner product of a and b (used for shard search
// where vectors are already known to be unit-norm, making inner product
// equivalent to cosine).
func Dot(a, b []float32) float32 {
	var dot float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	return dot
}

// Encode serializes a unit-norm 512-D embedding to a fixed 2048-byte
// little-endian float32 blob, matching the "embedding (512 float32
// values serialized as a fixed-size byte blob)".
func Encode(v []float32) ([]byte, error) {
	if len(v) != Dim {
		return nil, fmt.Errorf("vecmath: encode expects %d dims, got %d", Dim, len(v))
	}
	buf := make([]byte, Dim*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf, nil
}

// Decode is the inverse of Encode.
func Decode(b []byte) ([]float32, error) {
	if len(b) != Dim*4 {
		return nil, fmt.Errorf("vecmath: decode expects %d bytes, got %d", Dim*4, len(b))
	}
	v := make([]float32, Dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
