package metrics

import (
	"cmp"
	"slices"
	"sort"
	"sync"
	"time"
)

// DefaultRelevanceThreshold is the similarity above which a result counts as relevant.
const DefaultRelevanceThreshold = 0.6

// RetrievalMetrics accumulates retrieval quality and latency statistics.
// It is safe for concurrent use.
type RetrievalMetrics struct {
	mu           sync.Mutex
	latencies    []float64 // ms
	totalLatency float64
	relevance    []float64 // similarities
	domainHits   map[string]int
	chunkHits    map[string]int
}

func NewRetrievalMetrics() *RetrievalMetrics {
	return &RetrievalMetrics{
		domainHits: make(map[string]int),
		chunkHits:  make(map[string]int),
	}
}

// RecordQueryLatency records one query's latency.
func (m *RetrievalMetrics) RecordQueryLatency(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, ms)
	m.totalLatency += ms
}

// RecordSimilarities records scores that are already similarities.
func (m *RetrievalMetrics) RecordSimilarities(scores []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relevance = append(m.relevance, scores...)
}

func (m *RetrievalMetrics) RecordDomainHit(domain string, chunkCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainHits[domain] += chunkCount
}

func (m *RetrievalMetrics) RecordChunkHit(chunkKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunkHits[chunkKey]++
}

func (m *RetrievalMetrics) QueryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.latencies)
}

// AverageLatency returns the mean latency in milliseconds, 0 before any query.
func (m *RetrievalMetrics) AverageLatency() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) == 0 {
		return 0
	}
	return m.totalLatency / float64(len(m.latencies))
}

// LatencyPercentiles summarizes latencies in milliseconds.
type LatencyPercentiles struct {
	P50 float64 `json:"p50" yaml:"p50"`
	P95 float64 `json:"p95" yaml:"p95"`
	P99 float64 `json:"p99" yaml:"p99"`
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// LatencyPercentiles returns nil when nothing was recorded.
func (m *RetrievalMetrics) LatencyPercentiles() *LatencyPercentiles {
	m.mu.Lock()
	sorted := slices.Clone(m.latencies)
	m.mu.Unlock()
	if len(sorted) == 0 {
		return nil
	}
	sort.Float64s(sorted)
	return &LatencyPercentiles{
		P50: Percentile(sorted, 50),
		P95: Percentile(sorted, 95),
		P99: Percentile(sorted, 99),
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
	}
}

// Percentile interpolates linearly between closest ranks of an ascending slice.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func (m *RetrievalMetrics) AverageRelevance() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return mean(m.relevance)
}

// TopKPrecision is the fraction of the k best scores strictly above threshold.
// It is 0 while fewer than k scores were recorded.
func (m *RetrievalMetrics) TopKPrecision(k int, threshold float64) float64 {
	scores := m.scoresDesc()
	if k <= 0 || len(scores) < k {
		return 0
	}
	relevant := 0
	for _, s := range scores[:k] {
		if s > threshold {
			relevant++
		}
	}
	return float64(relevant) / float64(k)
}

// MeanReciprocalRank returns 1/rank of the best score above threshold, or 0.
func (m *RetrievalMetrics) MeanReciprocalRank(threshold float64) float64 {
	for i, s := range m.scoresDesc() {
		if s > threshold {
			return 1 / float64(i+1)
		}
	}
	return 0
}

func (m *RetrievalMetrics) scoresDesc() []float64 {
	m.mu.Lock()
	scores := slices.Clone(m.relevance)
	m.mu.Unlock()
	slices.SortFunc(scores, func(a, b float64) int { return cmp.Compare(b, a) })
	return scores
}

// DomainCoverage returns each domain's share of chunk hits in percent.
func (m *RetrievalMetrics) DomainCoverage() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.domainHits {
		total += n
	}
	out := make(map[string]float64, len(m.domainHits))
	if total == 0 {
		return out
	}
	for d, n := range m.domainHits {
		out[d] = float64(n) / float64(total) * 100
	}
	return out
}

// ChunkHit is a chunk key with the number of times it was retrieved.
type ChunkHit struct {
	Key  string `json:"key" yaml:"key"`
	Hits int    `json:"hits" yaml:"hits"`
}

// ChunkHitDistribution returns the topN most retrieved chunks, ties by key.
func (m *RetrievalMetrics) ChunkHitDistribution(topN int) []ChunkHit {
	m.mu.Lock()
	hits := make([]ChunkHit, 0, len(m.chunkHits))
	for k, n := range m.chunkHits {
		hits = append(hits, ChunkHit{Key: k, Hits: n})
	}
	m.mu.Unlock()

	slices.SortFunc(hits, func(a, b ChunkHit) int {
		if c := cmp.Compare(b.Hits, a.Hits); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if topN >= 0 && len(hits) > topN {
		hits = hits[:topN]
	}
	return hits
}

// RetrievalCoverage is the percentage of the knowledge base's chunks retrieved at least once.
func (m *RetrievalMetrics) RetrievalCoverage(totalChunks int) float64 {
	if totalChunks <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(len(m.chunkHits)) / float64(totalChunks) * 100
}

// ContextCoherence averages the mean similarity of every result set with more
// than one member. distanceSets hold cosine distances.
func ContextCoherence(distanceSets [][]float64) float64 {
	var per []float64
	for _, set := range distanceSets {
		if len(set) < 2 {
			continue
		}
		sims := make([]float64, len(set))
		for i, d := range set {
			sims[i] = 1 - d
		}
		per = append(per, mean(sims))
	}
	return mean(per)
}

// RedundancyScore is computed like ContextCoherence but read the other way:
// 0 means no redundancy, 1 means the result sets are near duplicates.
func RedundancyScore(distanceSets [][]float64) float64 {
	return ContextCoherence(distanceSets)
}

// Report is a snapshot of all retrieval metrics.
type Report struct {
	TotalQueries       int                 `json:"total_queries" yaml:"total_queries"`
	AverageLatencyMs   float64             `json:"average_latency_ms" yaml:"average_latency_ms"`
	LatencyPercentiles *LatencyPercentiles `json:"latency_percentiles,omitempty" yaml:"latency_percentiles,omitempty"`
	AverageRelevance   float64             `json:"average_relevance_score" yaml:"average_relevance_score"`
	Top5Precision      float64             `json:"top_5_precision" yaml:"top_5_precision"`
	MeanReciprocalRank float64             `json:"mean_reciprocal_rank" yaml:"mean_reciprocal_rank"`
	DomainCoverage     map[string]float64  `json:"domain_coverage" yaml:"domain_coverage"`
	UniqueChunksHit    int                 `json:"unique_chunks_hit" yaml:"unique_chunks_hit"`
	GeneratedAt        time.Time           `json:"generated_at" yaml:"generated_at"`
}

func (m *RetrievalMetrics) Report() Report {
	m.mu.Lock()
	unique := len(m.chunkHits)
	m.mu.Unlock()
	return Report{
		TotalQueries:       m.QueryCount(),
		AverageLatencyMs:   m.AverageLatency(),
		LatencyPercentiles: m.LatencyPercentiles(),
		AverageRelevance:   m.AverageRelevance(),
		Top5Precision:      m.TopKPrecision(5, DefaultRelevanceThreshold),
		MeanReciprocalRank: m.MeanReciprocalRank(DefaultRelevanceThreshold),
		DomainCoverage:     m.DomainCoverage(),
		UniqueChunksHit:    unique,
		GeneratedAt:        time.Now(),
	}
}

func (m *RetrievalMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = nil
	m.totalLatency = 0
	m.relevance = nil
	m.domainHits = make(map[string]int)
	m.chunkHits = make(map[string]int)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
