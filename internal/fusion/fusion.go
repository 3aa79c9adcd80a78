// Package fusion merges lexical and vector search result lists into one
// comparable ranking. Reciprocal Rank Fusion is the default because raw
// lexical and vector scores are not on the same scale; weighted score
// fusion is the score-based alternative.
package fusion

import (
	"sort"

	"kimuntu-rag-go/internal/model"
)

// Method selects how result lists are combined.
type Method string

const (
	// MethodRRF is rank-based Reciprocal Rank Fusion.
	MethodRRF Method = "rrf"
	// MethodWeighted combines min-max normalized scores.
	MethodWeighted Method = "weighted"
)

// DefaultRRFK is the RRF smoothing constant.
const DefaultRRFK = 60

// Default per-method weights. Config tunables, not derived constants.
const (
	DefaultLexicalWeight = 0.3
	DefaultVectorWeight  = 0.7
)

// DefaultScoreThreshold drops near-zero-relevance noise after fusion.
const DefaultScoreThreshold = 0.01

// Config tunes the fusion engine.
type Config struct {
	Method         Method
	RRFK           int
	LexicalWeight  float64
	VectorWeight   float64
	ScoreThreshold float64
}

// DefaultConfig returns the default fusion configuration.
func DefaultConfig() Config {
	return Config{
		Method:         MethodRRF,
		RRFK:           DefaultRRFK,
		LexicalWeight:  DefaultLexicalWeight,
		VectorWeight:   DefaultVectorWeight,
		ScoreThreshold: DefaultScoreThreshold,
	}
}

// Engine fuses ranked lists. Stateless; safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates a fusion engine, applying defaults for zero values.
func NewEngine(cfg Config) *Engine {
	if cfg.Method == "" {
		cfg.Method = MethodRRF
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = DefaultRRFK
	}
	if cfg.LexicalWeight == 0 && cfg.VectorWeight == 0 {
		cfg.LexicalWeight = DefaultLexicalWeight
		cfg.VectorWeight = DefaultVectorWeight
	}
	return &Engine{cfg: cfg}
}

// candidate holds intermediate fusion state for one id.
type candidate struct {
	result      model.SearchResult
	score       float64
	lexRank     int // 1-based, 0 when absent
	vecRank     int
	inBothLists bool
	insertion   int
}

// Fuse merges the lexical and vector lists, deduplicates by id, drops
// items below the score threshold, and truncates to topK. The steps run
// in exactly that order so thresholding never hides qualifying items from
// the truncation.
func (e *Engine) Fuse(lexical, vector []model.SearchResult, topK int) []model.RetrievedChunk {
	var fused []candidate
	switch e.cfg.Method {
	case MethodWeighted:
		fused = e.fuseWeighted(lexical, vector)
	default:
		fused = e.fuseRRF(lexical, vector)
	}

	sortCandidates(fused)
	fused = dedupe(fused)
	fused = threshold(fused, e.cfg.ScoreThreshold)
	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}

	out := make([]model.RetrievedChunk, len(fused))
	for i, c := range fused {
		out[i] = model.RetrievedChunk{
			ID:       c.result.ID,
			Content:  c.result.Content,
			Metadata: c.result.Metadata,
			Score:    c.score,
			Rank:     i + 1,
		}
	}
	return out
}

// fuseRRF scores each item as sum over methods of weight / (k + rank).
// Items present in only one list use only that method's term.
func (e *Engine) fuseRRF(lexical, vector []model.SearchResult) []candidate {
	k := float64(e.cfg.RRFK)
	byID := make(map[string]*candidate)
	order := make([]string, 0, len(lexical)+len(vector))

	for i, r := range lexical {
		c := &candidate{result: r, lexRank: i + 1, insertion: len(order)}
		c.score = e.cfg.LexicalWeight / (k + float64(i+1))
		byID[r.ID] = c
		order = append(order, r.ID)
	}
	for i, r := range vector {
		if c, ok := byID[r.ID]; ok {
			c.vecRank = i + 1
			c.inBothLists = true
			c.score += e.cfg.VectorWeight / (k + float64(i+1))
			continue
		}
		c := &candidate{result: r, vecRank: i + 1, insertion: len(order)}
		c.score = e.cfg.VectorWeight / (k + float64(i+1))
		byID[r.ID] = c
		order = append(order, r.ID)
	}

	out := make([]candidate, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// fuseWeighted min-max normalizes each list's raw scores before combining
// them with the per-method weights.
func (e *Engine) fuseWeighted(lexical, vector []model.SearchResult) []candidate {
	lexNorm := minMaxNormalize(lexical)
	vecNorm := minMaxNormalize(vector)

	byID := make(map[string]*candidate)
	order := make([]string, 0, len(lexical)+len(vector))

	for i, r := range lexical {
		c := &candidate{result: r, lexRank: i + 1, insertion: len(order)}
		c.score = e.cfg.LexicalWeight * lexNorm[i]
		byID[r.ID] = c
		order = append(order, r.ID)
	}
	for i, r := range vector {
		if c, ok := byID[r.ID]; ok {
			c.vecRank = i + 1
			c.inBothLists = true
			c.score += e.cfg.VectorWeight * vecNorm[i]
			continue
		}
		c := &candidate{result: r, vecRank: i + 1, insertion: len(order)}
		c.score = e.cfg.VectorWeight * vecNorm[i]
		byID[r.ID] = c
		order = append(order, r.ID)
	}

	out := make([]candidate, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// minMaxNormalize scales a list's scores to [0,1]. A constant-score list
// maps to all ones.
func minMaxNormalize(results []model.SearchResult) []float64 {
	out := make([]float64, len(results))
	if len(results) == 0 {
		return out
	}
	min, max := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	if max == min {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	for i, r := range results {
		out[i] = (r.Score - min) / (max - min)
	}
	return out
}

// sortCandidates orders by fused score desc; ties break by presence in
// both lists, then lower combined raw rank, then stable insertion order.
func sortCandidates(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.inBothLists != b.inBothLists {
			return a.inBothLists
		}
		ar := a.rawRankSum()
		br := b.rawRankSum()
		if ar != br {
			return ar < br
		}
		return a.insertion < b.insertion
	})
}

// rawRankSum is the combined raw rank used for tie-breaks, with absent
// ranks treated as zero cost only when present in one list each.
func (c candidate) rawRankSum() int {
	return c.lexRank + c.vecRank
}

// dedupe keeps the first (best-sorted) occurrence of each id.
func dedupe(cs []candidate) []candidate {
	seen := make(map[string]struct{}, len(cs))
	out := cs[:0]
	for _, c := range cs {
		if _, ok := seen[c.result.ID]; ok {
			continue
		}
		seen[c.result.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// threshold drops candidates scoring below the cutoff.
func threshold(cs []candidate, cutoff float64) []candidate {
	if cutoff <= 0 {
		return cs
	}
	out := cs[:0]
	for _, c := range cs {
		if c.score >= cutoff {
			out = append(out, c)
		}
	}
	return out
}

// Deduplicate exposes the id-dedup step for pre-sorted retrieved chunks,
// keeping the best-ranked instance and reassigning contiguous ranks.
func Deduplicate(chunks []model.RetrievedChunk) []model.RetrievedChunk {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]model.RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		c.Rank = len(out) + 1
		out = append(out, c)
	}
	return out
}
