package faces

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
	"github.com/your-org/gaze-engine/internal/vecmath"
)

func unit(dims ...float32) []float32 {
	v := make([]float32, vecmath.Dim)
	for i, d := range dims {
		v[i] = d
	}
	vecmath.Normalize(v)
	return v
}

func TestRecognizeAverageModeMatchesCentroid(t *testing.T) {
	m := NewMatcher(nil)
	centroid := unit(1, 0, 0)
	m.persons = map[string]*personModel{
		"alice": {mode: catalogmodel.RecognitionAverage, centroid: centroid},
	}

	match := m.Recognize(unit(1, 0, 0))
	require.NotNil(t, match)
	require.Equal(t, "alice", match.PersonID)
	require.InDelta(t, 1.0, match.Similarity, 1e-5)
}

func TestRecognizeReturnsNilBelowThreshold(t *testing.T) {
	m := NewMatcher(nil)
	centroid := unit(1, 0, 0)
	m.persons = map[string]*personModel{
		"alice": {mode: catalogmodel.RecognitionAverage, centroid: centroid},
	}
	// Orthogonal query: similarity ~0, well under the 0.65 base threshold.
	match := m.Recognize(unit(0, 1, 0))
	require.Nil(t, match)
}

func TestRecognizeReferenceOnlySkipsWithoutReferences(t *testing.T) {
	m := NewMatcher(nil)
	m.persons = map[string]*personModel{
		"alice": {mode: catalogmodel.RecognitionReferenceOnly, centroid: unit(1, 0, 0)},
	}
	match := m.Recognize(unit(1, 0, 0))
	require.Nil(t, match, "reference_only mode must ignore centroid when there are no references")
}

func TestRecognizeWeightedBlendsReferenceAndCentroid(t *testing.T) {
	m := NewMatcher(nil)
	ref := unit(1, 0, 0)
	centroid := unit(0.8, 0.2, 0)
	m.persons = map[string]*personModel{
		"alice": {mode: catalogmodel.RecognitionWeighted, centroid: centroid, references: [][]float32{ref}},
	}
	query := unit(1, 0, 0)
	match := m.Recognize(query)
	require.NotNil(t, match)

	expected := 0.6*vecmath.Cosine(query, ref) + 0.4*vecmath.Cosine(query, centroid)
	require.InDelta(t, expected, match.Similarity, 1e-5)
}

func TestApplyNegativePenaltyStrongMatch(t *testing.T) {
	embedding := unit(1, 0, 0)
	negatives := [][]float32{unit(1, 0, 0)} // identical => n = 1.0 > 0.7
	sim := applyNegativePenalty(0.9, embedding, negatives)
	require.InDelta(t, 0.9*(1-1.0), sim, 1e-5)
}

func TestApplyNegativePenaltyWeakMatch(t *testing.T) {
	embedding := unit(1, 0, 0)
	negatives := [][]float32{unit(0, 1, 0)} // orthogonal => n ~= 0, no penalty
	sim := applyNegativePenalty(0.9, embedding, negatives)
	require.InDelta(t, 0.9, sim, 1e-5)
}

func TestRecognizeUsesPairThresholdOverBase(t *testing.T) {
	m := NewMatcher(nil)
	m.persons = map[string]*personModel{
		"alice": {mode: catalogmodel.RecognitionAverage, centroid: unit(1, 0, 0)},
		"bob":   {mode: catalogmodel.RecognitionAverage, centroid: unit(0.99, 0.14, 0)},
	}
	// A high pair threshold between alice/bob should reject a match
	// that would otherwise clear the 0.65 base threshold.
	m.pairs = map[[2]string]float64{orderedPair("alice", "bob"): 1.5}

	match := m.Recognize(unit(1, 0, 0))
	require.Nil(t, match)
}

func TestRecognizeConfidenceDropsWithSmallMargin(t *testing.T) {
	m := NewMatcher(nil)
	m.persons = map[string]*personModel{
		"alice": {mode: catalogmodel.RecognitionAverage, centroid: unit(1, 0, 0)},
		"bob":   {mode: catalogmodel.RecognitionAverage, centroid: unit(0.999, 0.045, 0)},
	}
	match := m.Recognize(unit(1, 0, 0))
	require.NotNil(t, match)
	require.Equal(t, "alice", match.PersonID)
	require.Less(t, match.Confidence, match.Similarity, "a close runner-up must discount confidence below raw similarity")
}

func TestOrderedPairIsSymmetric(t *testing.T) {
	require.Equal(t, orderedPair("a", "b"), orderedPair("b", "a"))
}
