// Package faces implements the face learning subsystem:
// weighted per-person centroids, reference/negative embeddings, a
// learned pair-threshold map, auto-recognition scoring for newly
// detected faces, and the write path that lets a user's manual
// reassignment teach the system. It plays the role a pgvector ANN
// lookup plays for stream-based face matching, generalized from an
// index query to an in-memory scorer since gaze-engine's catalog has
// no vector index.
package faces

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/catalogmodel"
	"github.com/your-org/gaze-engine/internal/vecmath"
)

// Reference/manual/auto weights used to build a person's weighted
// centroid.
const (
	weightReference    = 3.0
	weightManual       = 2.0
	weightAutoOrLegacy = 1.0

	baseThreshold     = 0.65
	pairThresholdInit = 0.70
	pairThresholdBump = 0.02
	pairThresholdCap  = 0.85
)

// personModel is the in-memory recognition state for one person.
type personModel struct {
	mode       catalogmodel.RecognitionMode
	centroid   []float32 // nil if no assigned faces
	references [][]float32
	negatives  [][]float32
}

// Matcher holds the in-memory face-recognition state materialized
// from the catalog, refreshed by Reload. It is safe for concurrent
// read (Recognize) while a reload is not in flight; callers serialize
// Reload calls themselves (the pipeline reloads once per
// DETECTING_FACES stage, never concurrently with itself).
type Matcher struct {
	store *catalog.Store

	mu      sync.RWMutex
	persons map[string]*personModel
	pairs   map[[2]string]float64
}

func NewMatcher(store *catalog.Store) *Matcher {
	return &Matcher{store: store, persons: map[string]*personModel{}, pairs: map[[2]string]float64{}}
}

// Reload rebuilds every in-memory map from the catalog: per-person
// weighted centroids, reference lists, negative lists, and the
// pair-threshold map.
func (m *Matcher) Reload(ctx context.Context) error {
	people, err := m.store.ListPersons(ctx)
	if err != nil {
		return fmt.Errorf("faces: list persons: %w", err)
	}

	persons := make(map[string]*personModel, len(people))
	for _, p := range people {
		pm := &personModel{mode: p.RecognitionMode}

		assigned, err := m.store.ListFacesByPerson(ctx, p.PersonID)
		if err != nil {
			return fmt.Errorf("faces: list faces for %s: %w", p.PersonID, err)
		}
		sum := make([]float32, vecmath.Dim)
		var anyAssigned bool
		for _, f := range assigned {
			emb, err := vecmath.Decode(f.Embedding)
			if err != nil {
				continue
			}
			w := float32(weightForSource(f.AssignmentSource))
			for i, x := range emb {
				sum[i] += w * x
			}
			anyAssigned = true
		}
		if anyAssigned {
			vecmath.Normalize(sum)
			pm.centroid = sum
		}

		refs, err := m.store.ListFaceReferences(ctx, p.PersonID)
		if err != nil {
			return fmt.Errorf("faces: list references for %s: %w", p.PersonID, err)
		}
		for _, r := range refs {
			face, err := m.store.GetFace(ctx, r.FaceID)
			if err != nil {
				continue
			}
			emb, err := vecmath.Decode(face.Embedding)
			if err != nil {
				continue
			}
			pm.references = append(pm.references, emb)
		}

		negs, err := m.store.ListFaceNegatives(ctx, p.PersonID)
		if err != nil {
			return fmt.Errorf("faces: list negatives for %s: %w", p.PersonID, err)
		}
		for _, n := range negs {
			face, err := m.store.GetFace(ctx, n.FaceID)
			if err != nil {
				continue
			}
			emb, err := vecmath.Decode(face.Embedding)
			if err != nil {
				continue
			}
			pm.negatives = append(pm.negatives, emb)
		}

		persons[p.PersonID] = pm
	}

	pairRows, err := m.store.ListPairThresholds(ctx)
	if err != nil {
		return fmt.Errorf("faces: list pair thresholds: %w", err)
	}
	pairs := make(map[[2]string]float64, len(pairRows))
	for _, pr := range pairRows {
		pairs[[2]string{pr.PersonAID, pr.PersonBID}] = pr.Threshold
	}

	m.mu.Lock()
	m.persons = persons
	m.pairs = pairs
	m.mu.Unlock()
	return nil
}

func weightForSource(src catalogmodel.AssignmentSource) float64 {
	switch src {
	case catalogmodel.AssignmentRef:
		return weightReference
	case catalogmodel.AssignmentManual:
		return weightManual
	default:
		return weightAutoOrLegacy
	}
}

// Match is the outcome of scoring one face embedding against every
// known person.
type Match struct {
	PersonID   string
	Similarity float32
	Confidence float32
}

// candidate is an intermediate (person_id, base similarity) pair
// before negative-penalty and threshold logic apply.
type candidate struct {
	personID string
	sim      float32
}

// Recognize scores embedding against every person's model and returns
// the best match, or nil if no person clears its effective threshold
//.
func (m *Matcher) Recognize(embedding []float32) *Match {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.persons) == 0 {
		return nil
	}

	candidates := make([]candidate, 0, len(m.persons))
	for personID, pm := range m.persons {
		sim, ok := baseSimilarity(embedding, pm)
		if !ok {
			continue
		}
		sim = applyNegativePenalty(sim, embedding, pm.negatives)
		candidates = append(candidates, candidate{personID: personID, sim: sim})
	}
	if len(candidates) == 0 {
		return nil
	}

	sortCandidatesDesc(candidates)
	top := candidates[0]

	var runnerUpSim float32
	var runnerUpID string
	if len(candidates) > 1 {
		runnerUpSim = candidates[1].sim
		runnerUpID = candidates[1].personID
	}

	threshold := baseThreshold
	if t, ok := m.pairs[orderedPair(top.personID, runnerUpID)]; ok && runnerUpID != "" {
		threshold = t
	}
	if float64(top.sim) < threshold {
		return nil
	}

	confidence := top.sim
	margin := top.sim - runnerUpSim
	if margin < 0.1 {
		confidence = top.sim * (0.7 + 3*margin)
	}
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	return &Match{PersonID: top.personID, Similarity: top.sim, Confidence: confidence}
}

func baseSimilarity(embedding []float32, pm *personModel) (float32, bool) {
	switch pm.mode {
	case catalogmodel.RecognitionReferenceOnly:
		if len(pm.references) == 0 {
			return 0, false
		}
		return maxCosine(embedding, pm.references), true

	case catalogmodel.RecognitionWeighted:
		if len(pm.references) > 0 {
			maxRef := maxCosine(embedding, pm.references)
			if pm.centroid == nil {
				return maxRef, true
			}
			return 0.6*maxRef + 0.4*vecmath.Cosine(embedding, pm.centroid), true
		}
		if pm.centroid == nil {
			return 0, false
		}
		return vecmath.Cosine(embedding, pm.centroid), true

	default: // average
		if pm.centroid == nil {
			return 0, false
		}
		return vecmath.Cosine(embedding, pm.centroid), true
	}
}

func applyNegativePenalty(sim float32, embedding []float32, negatives [][]float32) float32 {
	if len(negatives) == 0 {
		return sim
	}
	n := maxCosine(embedding, negatives)
	switch {
	case n > 0.7:
		return sim * (1 - n)
	case n > 0.5:
		return sim * (1 - 0.5*n)
	default:
		return sim
	}
}

func maxCosine(embedding []float32, against [][]float32) float32 {
	var best float32 = -1
	for _, v := range against {
		if c := vecmath.Cosine(embedding, v); c > best {
			best = c
		}
	}
	return best
}

func sortCandidatesDesc(c []candidate) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j].sim > c[j-1].sim; j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

func orderedPair(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

// Reassign moves a face from person fromID to person toID, both
// non-null and distinct, recording the correction as a negative
// example against fromID and bumping (or initializing) the learned
// pair threshold.
// It also repicks each person's thumbnail face (closest to its own
// centroid) and recounts face totals. Callers must call Reload
// afterward to pick up the updated state.
func Reassign(ctx context.Context, store *catalog.Store, faceID, fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("faces: reassign: from and to person must differ")
	}
	now := time.Now().UnixMilli()

	if err := store.AddFaceNegative(ctx, faceID, fromID, now); err != nil {
		return fmt.Errorf("faces: record negative: %w", err)
	}

	threshold := pairThresholdInit
	if existing, err := store.GetPairThreshold(ctx, fromID, toID); err == nil {
		threshold = existing.Threshold + pairThresholdBump
		if threshold > pairThresholdCap {
			threshold = pairThresholdCap
		}
	} else if err != catalog.ErrNotFound {
		return fmt.Errorf("faces: load pair threshold: %w", err)
	}
	if err := store.BumpPairThreshold(ctx, fromID, toID, threshold, now); err != nil {
		return fmt.Errorf("faces: bump pair threshold: %w", err)
	}

	confidence := 1.0
	if err := store.AssignFace(ctx, faceID, &toID, catalogmodel.AssignmentManual, &confidence, now); err != nil {
		return fmt.Errorf("faces: assign face: %w", err)
	}

	for _, personID := range [...]string{fromID, toID} {
		if err := store.RecountFaces(ctx, personID, now); err != nil {
			return fmt.Errorf("faces: recount %s: %w", personID, err)
		}
		if err := repickThumbnail(ctx, store, personID); err != nil {
			return fmt.Errorf("faces: repick thumbnail for %s: %w", personID, err)
		}
	}
	return nil
}

// MarkReference flips face's provenance to reference (confidence 1.0)
// and inserts/updates it in the references table.
func MarkReference(ctx context.Context, store *catalog.Store, faceID, personID string) error {
	now := time.Now().UnixMilli()
	if err := store.AddFaceReference(ctx, faceID, personID, weightReference, float64(now)); err != nil {
		return fmt.Errorf("faces: add reference: %w", err)
	}
	confidence := 1.0
	return store.AssignFace(ctx, faceID, &personID, catalogmodel.AssignmentRef, &confidence, now)
}

// repickThumbnail sets personID's thumbnail to the assigned face
// closest to its (freshly recomputed) centroid. A person with no
// assigned faces is left without a thumbnail.
func repickThumbnail(ctx context.Context, store *catalog.Store, personID string) error {
	assigned, err := store.ListFacesByPerson(ctx, personID)
	if err != nil {
		return err
	}
	if len(assigned) == 0 {
		return nil
	}

	sum := make([]float32, vecmath.Dim)
	embeddings := make([][]float32, len(assigned))
	for i, f := range assigned {
		emb, err := vecmath.Decode(f.Embedding)
		if err != nil {
			continue
		}
		embeddings[i] = emb
		w := float32(weightForSource(f.AssignmentSource))
		for j, x := range emb {
			sum[j] += w * x
		}
	}
	vecmath.Normalize(sum)

	bestIdx := -1
	var bestSim float32 = -2
	for i, emb := range embeddings {
		if emb == nil {
			continue
		}
		if sim := vecmath.Cosine(emb, sum); sim > bestSim {
			bestSim = sim
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return nil
	}
	return store.SetPersonThumbnail(ctx, personID, assigned[bestIdx].FaceID)
}

// clusterSimilarityThreshold is the cosine similarity above which two
// unassigned faces are considered the same unidentified person.
const clusterSimilarityThreshold = 0.62

// ClusterUnassigned groups up to limit unassigned faces by mutual
// cosine similarity (single-link union-find) and tags each resulting
// group with a shared cluster id, so the review queue can present
// "probably the same person" groups instead of one face at a time. It
// returns the number of faces that were assigned a cluster.
func ClusterUnassigned(ctx context.Context, store *catalog.Store, limit int) (int, error) {
	faceRows, err := store.ListUnassignedFaces(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("faces: list unassigned: %w", err)
	}

	embeddings := make([][]float32, len(faceRows))
	for i, f := range faceRows {
		emb, err := vecmath.Decode(f.Embedding)
		if err != nil {
			continue
		}
		embeddings[i] = emb
	}

	parent := make([]int, len(faceRows))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i := range embeddings {
		if embeddings[i] == nil {
			continue
		}
		for j := i + 1; j < len(embeddings); j++ {
			if embeddings[j] == nil {
				continue
			}
			if vecmath.Cosine(embeddings[i], embeddings[j]) >= clusterSimilarityThreshold {
				union(i, j)
			}
		}
	}

	groups := map[int][]int{}
	for i := range faceRows {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	assigned := 0
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		clusterID := uuid.NewString()
		for _, idx := range members {
			if err := store.SetFaceCluster(ctx, faceRows[idx].FaceID, clusterID); err != nil {
				return assigned, fmt.Errorf("faces: set cluster: %w", err)
			}
			assigned++
		}
	}
	return assigned, nil
}
