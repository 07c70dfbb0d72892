// Package search implements the multi-modal search planner: query
// classification against fixed object/color vocabularies, a transcript
// full-text branch, a visual branch fusing CLIP embedding similarity
// with object-detection hits, label and person filters, and final
// cross-branch merge/ranking. It follows the one-package-per-concern
// layout the rest of the module uses, built for this domain without a
// direct source file to adapt from.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/your-org/gaze-engine/internal/artifacts"
	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/catalogmodel"
	"github.com/your-org/gaze-engine/internal/executors"
	"github.com/your-org/gaze-engine/internal/observability"
)

// Mode selects which branches of the planner run.
type Mode string

const (
	ModeTranscript Mode = "transcript"
	ModeVisual     Mode = "visual"
	ModeBoth       Mode = "both"
)

// MatchType records which branch produced (or both branches produced)
// a given result.
type MatchType string

const (
	MatchTranscript MatchType = "transcript"
	MatchVisual     MatchType = "visual"
	MatchBoth       MatchType = "both"
)

const (
	visualSimilarityFloorDefault = 0.18
	visualSimilarityFloorObject  = 0.22
	detectionMinConfidence       = 0.0 // detection rows are already stored at >= the stage's 0.25 accept threshold
	personWindowMs               = 5000
	labelWindowMs                = 3000
)

// Query is the planner's input.
type Query struct {
	Text      string
	Mode      Mode
	Labels    []string
	PersonIDs []string
	LibraryID string
	Limit     int
	Offset    int
}

// PersonHit is a person appearing in a result's time window.
type PersonHit struct {
	PersonID string `json:"person_id"`
	Name     string `json:"name"`
}

// Result is one ranked hit.
type Result struct {
	MediaID           string      `json:"video_id"`
	TimestampMs       int64       `json:"timestamp_ms"`
	Score             float64     `json:"score"`
	MatchType         MatchType   `json:"match_type"`
	TranscriptSnippet string      `json:"transcript_snippet,omitempty"`
	ThumbnailPath     string      `json:"thumbnail_path,omitempty"`
	Labels            []string    `json:"labels,omitempty"`
	Persons           []PersonHit `json:"persons,omitempty"`
}

// resultKey identifies a moment for dedup/merge across branches.
type resultKey struct {
	mediaID     string
	timestampMs int64
}

// Planner executes searches against the catalog and artifact stores.
type Planner struct {
	store    *catalog.Store
	embedder *executors.ImageEmbedder
	shards   *artifacts.ShardCache

	objectAliases map[string]string
	colorAliases  map[string]string
	objectLabels  map[string]bool
	colorNames    map[string]bool
}

func NewPlanner(store *catalog.Store, embedder *executors.ImageEmbedder, shards *artifacts.ShardCache) *Planner {
	p := &Planner{
		store:         store,
		embedder:      embedder,
		shards:        shards,
		objectAliases: defaultObjectAliases(),
		colorAliases:  defaultColorAliases(),
		objectLabels:  map[string]bool{},
		colorNames:    map[string]bool{},
	}
	for _, l := range executors.CocoLabels {
		p.objectLabels[l] = true
	}
	for _, c := range executors.CanonicalColors {
		p.colorNames[c] = true
	}
	return p
}

// classification is the result of tokenizing the query against the
// fixed object/color vocabularies.
type classification struct {
	detectedCategory string // "" if none
	detectedColor    string // "" if none
}

func (p *Planner) classify(query string) classification {
	var c classification
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		tok = strings.Trim(tok, ".,!?\"'")
		if c.detectedCategory == "" {
			if p.objectLabels[tok] {
				c.detectedCategory = tok
			} else if canon, ok := p.objectAliases[tok]; ok {
				c.detectedCategory = canon
			}
		}
		if c.detectedColor == "" {
			if p.colorNames[tok] {
				c.detectedColor = tok
			} else if canon, ok := p.colorAliases[tok]; ok {
				c.detectedColor = canon
			}
		}
	}
	return c
}

// Search runs the full planner pipeline and returns ranked, paginated
// results plus the pre-pagination total.
func (p *Planner) Search(ctx context.Context, q Query) ([]Result, int, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	// Label-only shortcut: labels set, query blank.
	if len(q.Labels) > 0 && strings.TrimSpace(q.Text) == "" && len(q.PersonIDs) == 0 {
		start := time.Now()
		results, err := p.labelOnlySearch(ctx, q.Labels, q.LibraryID)
		observability.SearchDuration.WithLabelValues("metadata").Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, 0, err
		}
		return paginate(results, q.Offset, limit)
	}

	class := p.classify(q.Text)
	byKey := map[resultKey]*Result{}
	order := []resultKey{}

	upsert := func(r Result) {
		k := resultKey{r.MediaID, r.TimestampMs}
		if existing, ok := byKey[k]; ok {
			mergeResults(existing, &r)
			return
		}
		cp := r
		byKey[k] = &cp
		order = append(order, k)
	}

	if q.Mode == ModeTranscript || q.Mode == ModeBoth {
		start := time.Now()
		hits, err := p.transcriptBranch(ctx, q.Text, q.LibraryID, limit)
		observability.SearchDuration.WithLabelValues("transcript").Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, 0, err
		}
		for _, h := range hits {
			upsert(h)
		}
	}

	if q.Mode == ModeVisual || q.Mode == ModeBoth {
		start := time.Now()
		hits, err := p.visualBranch(ctx, q.Text, class, q.LibraryID, limit)
		branch := "semantic"
		if class.detectedCategory != "" || class.detectedColor != "" {
			branch = "object"
		}
		observability.SearchDuration.WithLabelValues(branch).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, 0, err
		}
		for _, h := range hits {
			upsert(h)
		}
	}

	results := make([]Result, 0, len(order))
	for _, k := range order {
		results = append(results, *byKey[k])
	}

	if len(q.Labels) > 0 && strings.TrimSpace(q.Text) != "" {
		var err error
		results, err = p.applyLabelFilter(ctx, results, q.Labels)
		if err != nil {
			return nil, 0, err
		}
	}

	if len(q.PersonIDs) > 0 {
		var err error
		results, err = p.applyPersonFilter(ctx, results, q.PersonIDs, strings.TrimSpace(q.Text) == "", q.LibraryID)
		if err != nil {
			return nil, 0, err
		}
	} else {
		if err := p.enrichPersons(ctx, results); err != nil {
			return nil, 0, err
		}
	}

	sortResultsDesc(results)
	return paginate(results, q.Offset, limit)
}

func paginate(results []Result, offset, limit int) ([]Result, int, error) {
	total := len(results)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total || limit <= 0 {
		end = total
	}
	return results[offset:end], total, nil
}

func mergeResults(dst, src *Result) {
	dst.MatchType = MatchBoth
	if src.Score > dst.Score {
		dst.Score = src.Score
	}
	if dst.TranscriptSnippet == "" {
		dst.TranscriptSnippet = src.TranscriptSnippet
	}
	if dst.ThumbnailPath == "" {
		dst.ThumbnailPath = src.ThumbnailPath
	}
	if len(dst.Labels) == 0 {
		dst.Labels = src.Labels
	}
}

func sortResultsDesc(results []Result) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}

// --- Transcript branch ---

func (p *Planner) transcriptBranch(ctx context.Context, query, libraryID string, limit int) ([]Result, error) {
	text := strings.TrimSpace(query)
	if text == "" {
		return nil, nil
	}
	// SearchTranscripts only scopes by a single media_id; library scoping
	// for the transcript branch is applied as a post-filter below
	// instead, keeping the store's query surface to one optional
	// mediaID rather than an arbitrary filter set.
	matches, err := p.store.SearchTranscripts(ctx, catalog.EscapeFTSPhrase(text), "", limit)
	if err != nil {
		return nil, fmt.Errorf("search: transcript branch: %w", err)
	}

	var libMediaIDs map[string]bool
	if libraryID != "" {
		libMediaIDs, err = p.mediaIDSetForLibrary(ctx, libraryID)
		if err != nil {
			return nil, err
		}
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if libMediaIDs != nil && !libMediaIDs[m.VideoID] {
			continue
		}
		score := 1.0 / (1.0 + absFloat(m.Rank))
		results = append(results, Result{
			MediaID:           m.VideoID,
			TimestampMs:       m.StartMs,
			Score:             score,
			MatchType:         MatchTranscript,
			TranscriptSnippet: snippetAround(m.Text, text),
		})
	}
	return results, nil
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// snippetAround wraps the matched phrase in <mark></mark>, bounded to
// roughly 20 tokens of surrounding context.
func snippetAround(text, phrase string) string {
	const contextTokens = 20
	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(phrase))
	if idx < 0 {
		return truncateTokens(text, contextTokens)
	}
	before := strings.Fields(text[:idx])
	after := strings.Fields(text[idx+len(phrase):])
	half := contextTokens / 2
	if len(before) > half {
		before = before[len(before)-half:]
	}
	if len(after) > half {
		after = after[:half]
	}
	matched := text[idx : idx+len(phrase)]
	var b strings.Builder
	b.WriteString(strings.Join(before, " "))
	b.WriteString(" <mark>")
	b.WriteString(matched)
	b.WriteString("</mark> ")
	b.WriteString(strings.Join(after, " "))
	return strings.TrimSpace(b.String())
}

func truncateTokens(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) <= n {
		return text
	}
	return strings.Join(fields[:n], " ") + "…"
}

func (p *Planner) mediaIDSetForLibrary(ctx context.Context, libraryID string) (map[string]bool, error) {
	rows, err := p.store.ListMediaByLibrary(ctx, libraryID)
	if err != nil {
		return nil, fmt.Errorf("search: list media for library: %w", err)
	}
	set := make(map[string]bool, len(rows))
	for _, r := range rows {
		set[r.MediaID] = true
	}
	return set, nil
}

// --- Visual branch ---

func (p *Planner) visualBranch(ctx context.Context, query string, class classification, libraryID string, limit int) ([]Result, error) {
	items, err := p.doneMedia(ctx, libraryID)
	if err != nil {
		return nil, err
	}

	detectionCache := map[resultKey]float64{}
	if class.detectedCategory != "" {
		dets, err := p.store.DetectionsByLabel(ctx, class.detectedCategory, detectionMinConfidence)
		if err != nil {
			return nil, fmt.Errorf("search: detection pass: %w", err)
		}
		allowed := make(map[string]bool, len(items))
		for _, it := range items {
			allowed[it.MediaID] = true
		}
		best := map[resultKey]float64{}
		for _, d := range dets {
			if !allowed[d.VideoID] {
				continue
			}
			k := resultKey{d.VideoID, d.TimestampMs}
			score := 0.5 + 0.5*d.Confidence
			if score > best[k] {
				best[k] = score
			}
		}
		detectionCache = best
	}

	cache := frameCache{}

	if strings.TrimSpace(query) == "" || p.embedder == nil {
		// No text to embed: emit bare detection hits (still useful for
		// the label-only path's label filter, but normal text search
		// always has a query by construction).
		results := make([]Result, 0, len(detectionCache))
		for k, score := range detectionCache {
			r, err := p.resultFromFrame(ctx, cache, k.mediaID, k.timestampMs, score, MatchVisual)
			if err != nil {
				continue
			}
			results = append(results, *r)
		}
		return results, nil
	}

	queryVec, err := p.embedder.EmbedText(query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	floor := visualSimilarityFloorDefault
	if class.detectedCategory != "" {
		floor = visualSimilarityFloorObject
	}

	consumedDetectionKeys := map[resultKey]bool{}
	var results []Result

	for _, it := range items {
		shard, err := p.shards.Get(it.MediaID)
		if err != nil {
			continue // no shard yet (item not embedded, or deleted concurrently)
		}
		k := limit
		if k > 20 {
			k = 20
		}
		hits := shard.Search(queryVec, k)
		for _, hit := range hits {
			clipSim := float64(hit.Score)
			if clipSim < floor {
				continue
			}

			frame, err := p.frameByIndex(ctx, cache, it.MediaID, hit.FrameIndex)
			if err != nil {
				continue
			}

			score := clipSim
			colorMatched := false
			if class.detectedColor != "" {
				if frameHasColor(frame.Colors, class.detectedColor) {
					score = minF(1.0, score+0.15)
					colorMatched = true
				} else {
					score *= 0.7
				}
			}

			rk := resultKey{it.MediaID, frame.TimestampMs}
			if detScore, ok := detectionCache[rk]; ok {
				bump := 0.1
				if colorMatched {
					bump = 0.2
				}
				score = minF(1.0, maxF(clipSim, detScore)+bump)
				consumedDetectionKeys[rk] = true
			} else if class.detectedCategory != "" {
				score *= 0.6 // non-detection penalty for an active object query
			}

			results = append(results, Result{
				MediaID:       it.MediaID,
				TimestampMs:   frame.TimestampMs,
				Score:         score,
				MatchType:     MatchVisual,
				ThumbnailPath: frame.ThumbnailPath,
				Labels:        colorList(frame.Colors),
			})
		}
	}

	for k, score := range detectionCache {
		if consumedDetectionKeys[k] {
			continue
		}
		r, err := p.resultFromFrame(ctx, cache, k.mediaID, k.timestampMs, score, MatchVisual)
		if err != nil {
			continue
		}
		results = append(results, *r)
	}

	return results, nil
}

// frameCache memoizes ListFramesByMedia within a single branch's result
// loop, since multiple hits commonly land on the same item's shard.
type frameCache map[string][]catalogmodel.Frame

func (p *Planner) framesForMedia(ctx context.Context, cache frameCache, mediaID string) ([]catalogmodel.Frame, error) {
	if frames, ok := cache[mediaID]; ok {
		return frames, nil
	}
	frames, err := p.store.ListFramesByMedia(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	cache[mediaID] = frames
	return frames, nil
}

func (p *Planner) resultFromFrame(ctx context.Context, cache frameCache, mediaID string, timestampMs int64, score float64, mt MatchType) (*Result, error) {
	frames, err := p.framesForMedia(ctx, cache, mediaID)
	if err != nil {
		return nil, err
	}
	for _, f := range frames {
		if f.TimestampMs == timestampMs {
			return &Result{
				MediaID:       mediaID,
				TimestampMs:   timestampMs,
				Score:         score,
				MatchType:     mt,
				ThumbnailPath: f.ThumbnailPath,
				Labels:        colorList(f.Colors),
			}, nil
		}
	}
	return &Result{MediaID: mediaID, TimestampMs: timestampMs, Score: score, MatchType: mt}, nil
}

func (p *Planner) frameByIndex(ctx context.Context, cache frameCache, mediaID string, frameIndex int) (*catalogmodel.Frame, error) {
	frames, err := p.framesForMedia(ctx, cache, mediaID)
	if err != nil {
		return nil, err
	}
	for i := range frames {
		if frames[i].FrameIndex == frameIndex {
			return &frames[i], nil
		}
	}
	return nil, fmt.Errorf("search: no frame at index %d for %s", frameIndex, mediaID)
}

func (p *Planner) doneMedia(ctx context.Context, libraryID string) ([]catalogmodel.MediaItem, error) {
	var items []catalogmodel.MediaItem
	if libraryID != "" {
		var err error
		items, err = p.store.ListMediaByLibrary(ctx, libraryID)
		if err != nil {
			return nil, fmt.Errorf("search: list media: %w", err)
		}
	} else {
		libs, err := p.store.ListLibraries(ctx)
		if err != nil {
			return nil, fmt.Errorf("search: list libraries: %w", err)
		}
		for _, lib := range libs {
			rows, err := p.store.ListMediaByLibrary(ctx, lib.LibraryID)
			if err != nil {
				return nil, fmt.Errorf("search: list media for %s: %w", lib.LibraryID, err)
			}
			items = append(items, rows...)
		}
	}
	out := make([]catalogmodel.MediaItem, 0, len(items))
	for _, it := range items {
		if it.Status == catalogmodel.StatusDone {
			out = append(out, it)
		}
	}
	return out, nil
}

func frameHasColor(colors *string, name string) bool {
	if colors == nil {
		return false
	}
	for _, c := range strings.Split(*colors, ",") {
		if strings.TrimSpace(c) == name {
			return true
		}
	}
	return false
}

func colorList(colors *string) []string {
	if colors == nil || *colors == "" {
		return nil
	}
	return strings.Split(*colors, ",")
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// --- Label-only shortcut ---

// labelOnlySearch handles the case where labels are given but the
// query text is blank: every detection matching one of the requested
// labels becomes a result, scored purely by detection confidence.
func (p *Planner) labelOnlySearch(ctx context.Context, labels []string, libraryID string) ([]Result, error) {
	var allowed map[string]bool
	if libraryID != "" {
		var err error
		allowed, err = p.mediaIDSetForLibrary(ctx, libraryID)
		if err != nil {
			return nil, err
		}
	}

	seen := map[resultKey]bool{}
	cache := frameCache{}
	var results []Result
	for _, label := range labels {
		dets, err := p.store.DetectionsByLabel(ctx, strings.ToLower(label), detectionMinConfidence)
		if err != nil {
			return nil, fmt.Errorf("search: label-only lookup %q: %w", label, err)
		}
		for _, d := range dets {
			if allowed != nil && !allowed[d.VideoID] {
				continue
			}
			k := resultKey{d.VideoID, d.TimestampMs}
			if seen[k] {
				continue
			}
			seen[k] = true
			r, err := p.resultFromFrame(ctx, cache, d.VideoID, d.TimestampMs, 0.5+0.5*d.Confidence, MatchVisual)
			if err != nil {
				continue
			}
			results = append(results, *r)
		}
	}

	if err := p.enrichPersons(ctx, results); err != nil {
		return nil, err
	}
	sortResultsDesc(results)
	return results, nil
}

// --- Label filter ---

// applyLabelFilter keeps only results that have at least one detection
// matching one of labels within a ±3s window, boosting the score by
// 0.05 per matching label (capped at 0.15).
func (p *Planner) applyLabelFilter(ctx context.Context, results []Result, labels []string) ([]Result, error) {
	if len(results) == 0 {
		return results, nil
	}
	wanted := make(map[string]bool, len(labels))
	for _, l := range labels {
		wanted[strings.ToLower(l)] = true
	}

	detsByMedia := map[string][]catalogmodel.Detection{}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		dets, ok := detsByMedia[r.MediaID]
		if !ok {
			var err error
			dets, err = p.store.ListDetectionsByMedia(ctx, r.MediaID)
			if err != nil {
				return nil, fmt.Errorf("search: list detections for label filter: %w", err)
			}
			detsByMedia[r.MediaID] = dets
		}

		matches := 0
		for _, d := range dets {
			if !wanted[strings.ToLower(d.Label)] {
				continue
			}
			if absInt64(d.TimestampMs-r.TimestampMs) <= labelWindowMs {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		r.Score = minF(1.0, r.Score+minF(0.15, 0.05*float64(matches)))
		out = append(out, r)
	}
	return out, nil
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// --- Person filter/enrichment ---

// personWindow is the set of persons appearing in a 5-second bucket of
// one media item's timeline.
type personWindow struct {
	mediaID    string
	windowStMs int64
	persons    []PersonHit
}

func (p *Planner) personWindows(ctx context.Context, libraryID string) (map[string]map[int64][]PersonHit, error) {
	items, err := p.doneMediaIncludingNonDone(ctx, libraryID)
	if err != nil {
		return nil, err
	}

	names, err := p.personNames(ctx)
	if err != nil {
		return nil, err
	}

	out := map[string]map[int64][]PersonHit{}
	for _, it := range items {
		faces, err := p.store.ListFacesByMedia(ctx, it.MediaID)
		if err != nil {
			return nil, fmt.Errorf("search: list faces for %s: %w", it.MediaID, err)
		}
		byWindow := map[int64]map[string]bool{}
		for _, f := range faces {
			if f.PersonID == nil {
				continue
			}
			w := (f.TimestampMs / personWindowMs) * personWindowMs
			if byWindow[w] == nil {
				byWindow[w] = map[string]bool{}
			}
			byWindow[w][*f.PersonID] = true
		}
		if len(byWindow) == 0 {
			continue
		}
		windows := map[int64][]PersonHit{}
		for w, personSet := range byWindow {
			hits := make([]PersonHit, 0, len(personSet))
			for personID := range personSet {
				hits = append(hits, PersonHit{PersonID: personID, Name: names[personID]})
			}
			sort.Slice(hits, func(i, j int) bool { return hits[i].PersonID < hits[j].PersonID })
			windows[w] = hits
		}
		out[it.MediaID] = windows
	}
	return out, nil
}

func (p *Planner) personNames(ctx context.Context) (map[string]string, error) {
	people, err := p.store.ListPersons(ctx)
	if err != nil {
		return nil, fmt.Errorf("search: list persons: %w", err)
	}
	names := make(map[string]string, len(people))
	for _, pr := range people {
		names[pr.PersonID] = pr.Name
	}
	return names, nil
}

// doneMediaIncludingNonDone returns every media row in scope, not just
// DONE ones, since face detection may have completed before the final
// stage (e.g. DETECTING_FACES already ran even though enhanced audio
// stages are still pending on a video item).
func (p *Planner) doneMediaIncludingNonDone(ctx context.Context, libraryID string) ([]catalogmodel.MediaItem, error) {
	if libraryID != "" {
		return p.store.ListMediaByLibrary(ctx, libraryID)
	}
	libs, err := p.store.ListLibraries(ctx)
	if err != nil {
		return nil, fmt.Errorf("search: list libraries: %w", err)
	}
	var items []catalogmodel.MediaItem
	for _, lib := range libs {
		rows, err := p.store.ListMediaByLibrary(ctx, lib.LibraryID)
		if err != nil {
			return nil, fmt.Errorf("search: list media for %s: %w", lib.LibraryID, err)
		}
		items = append(items, rows...)
	}
	return items, nil
}

func windowStart(timestampMs int64) int64 {
	return (timestampMs / personWindowMs) * personWindowMs
}

// applyPersonFilter restricts results (or, for a blank text query,
// generates one result per matching window) to moments where the
// requested persons appear, boosting score by how many of the
// requested persons are present.
func (p *Planner) applyPersonFilter(ctx context.Context, results []Result, personIDs []string, blankQuery bool, libraryID string) ([]Result, error) {
	windows, err := p.personWindows(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(personIDs))
	for _, id := range personIDs {
		wanted[id] = true
	}

	matchCount := func(hits []PersonHit) int {
		n := 0
		for _, h := range hits {
			if wanted[h.PersonID] {
				n++
			}
		}
		return n
	}

	if blankQuery {
		cache := frameCache{}
		var out []Result
		for mediaID, byWindow := range windows {
			for w, hits := range byWindow {
				n := matchCount(hits)
				if n == 0 {
					continue
				}
				score := float64(n) / float64(len(wanted))
				r, err := p.resultFromFrame(ctx, cache, mediaID, w, score, MatchVisual)
				if err != nil {
					continue
				}
				r.Persons = hits
				out = append(out, *r)
			}
		}
		sortResultsDesc(out)
		return out, nil
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		byWindow, ok := windows[r.MediaID]
		if !ok {
			continue
		}
		center := windowStart(r.TimestampMs)
		best := 0
		var bestHits []PersonHit
		for _, w := range []int64{center - personWindowMs, center, center + personWindowMs} {
			hits := byWindow[w]
			if n := matchCount(hits); n > best {
				best = n
				bestHits = hits
			}
		}
		if best == 0 {
			continue
		}
		r.Score = minF(1.0, r.Score+minF(0.2, 0.1*float64(best)))
		r.Persons = bestHits
		out = append(out, r)
	}
	return out, nil
}

// enrichPersons attaches the persons present in each result's own
// 5-second window, for results that were not already produced by a
// person filter/query.
func (p *Planner) enrichPersons(ctx context.Context, results []Result) error {
	if len(results) == 0 {
		return nil
	}
	libraryWindows, err := p.personWindows(ctx, "")
	if err != nil {
		return err
	}
	for i := range results {
		byWindow, ok := libraryWindows[results[i].MediaID]
		if !ok {
			continue
		}
		results[i].Persons = byWindow[windowStart(results[i].TimestampMs)]
	}
	return nil
}

// --- Object/color alias maps ---

// defaultObjectAliases maps common synonyms onto the fixed COCO label
// set so a query like "puppy" still classifies as the "dog" category.
func defaultObjectAliases() map[string]string {
	return map[string]string{
		"puppy":      "dog",
		"doggy":      "dog",
		"kitten":     "cat",
		"kitty":      "cat",
		"automobile": "car",
		"auto":       "car",
		"bike":       "bicycle",
		"motorbike":  "motorcycle",
		"aeroplane":  "airplane",
		"plane":      "airplane",
		"telly":      "tv",
		"television": "tv",
		"sofa":       "couch",
		"settee":     "couch",
		"mobile":     "cell phone",
		"smartphone": "cell phone",
		"phone":      "cell phone",
		"laptop":     "laptop",
		"notebook":   "laptop",
	}
}

// defaultColorAliases maps color synonyms onto the fixed canonical
// palette (executors.CanonicalColors).
func defaultColorAliases() map[string]string {
	return map[string]string{
		"crimson":   "red",
		"maroon":    "red",
		"scarlet":   "red",
		"azure":     "blue",
		"navy":      "blue",
		"cobalt":    "blue",
		"turquoise": "cyan",
		"teal":      "cyan",
		"violet":    "purple",
		"lavender":  "purple",
		"magenta":   "pink",
		"rose":      "pink",
		"gold":      "yellow",
		"amber":     "yellow",
		"silver":    "gray",
		"grey":      "gray",
		"charcoal":  "black",
		"ivory":     "white",
		"cream":     "white",
		"beige":     "yellow",
		"tan":       "yellow",
		"lime":      "green",
		"olive":     "green",
	}
}

// --- Caption export ---

// ExportSRT renders transcript segments as SubRip captions.
func ExportSRT(segments []catalogmodel.TranscriptSegment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, formatSRTTimestamp(seg.StartMs), formatSRTTimestamp(seg.EndMs), seg.Text)
	}
	return b.String()
}

// ExportWebVTT renders transcript segments as a WebVTT track.
func ExportWebVTT(segments []catalogmodel.TranscriptSegment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n", formatVTTTimestamp(seg.StartMs), formatVTTTimestamp(seg.EndMs), seg.Text)
	}
	return b.String()
}

func formatSRTTimestamp(ms int64) string {
	h, m, s, frac := splitMs(ms)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, frac)
}

func formatVTTTimestamp(ms int64) string {
	h, m, s, frac := splitMs(ms)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, frac)
}

func splitMs(ms int64) (h, m, s, frac int64) {
	if ms < 0 {
		ms = 0
	}
	frac = ms % 1000
	totalSeconds := ms / 1000
	s = totalSeconds % 60
	totalMinutes := totalSeconds / 60
	m = totalMinutes % 60
	h = totalMinutes / 60
	return
}
