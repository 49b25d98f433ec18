package metrics

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BenchmarkQuery is a test query with the domains a good retrieval should hit.
type BenchmarkQuery struct {
	Query           string   `yaml:"query"`
	ExpectedDomains []string `yaml:"expected_domains"`
}

// Suite is a YAML benchmark file.
type Suite struct {
	Name    string           `yaml:"name"`
	TopK    int              `yaml:"top_k"`
	Queries []BenchmarkQuery `yaml:"queries"`
}

// LoadSuite reads a benchmark suite from a YAML file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse suite %s: %w", path, err)
	}
	if len(s.Queries) == 0 {
		return nil, fmt.Errorf("suite %s has no queries", path)
	}
	if s.TopK <= 0 {
		s.TopK = 5
	}
	return &s, nil
}

// Evaluation is the score of one benchmark query.
type Evaluation struct {
	Index            int     `json:"query_idx" yaml:"query_idx"`
	Query            string  `json:"query" yaml:"query"`
	Precision        float64 `json:"precision" yaml:"precision"`
	Recall           float64 `json:"recall" yaml:"recall"`
	F1               float64 `json:"f1_score" yaml:"f1_score"`
	AverageRelevance float64 `json:"average_relevance" yaml:"average_relevance"`
}

// Benchmark scores retrieved domains against expected domains per query.
type Benchmark struct {
	queries   []BenchmarkQuery
	results   []Evaluation
	distances [][]float64
}

func NewBenchmark(queries []BenchmarkQuery) *Benchmark {
	return &Benchmark{queries: queries}
}

// EvaluateQuery scores query idx. Precision and recall are computed over the
// sets of domains; recall is 1 when nothing was expected.
func (b *Benchmark) EvaluateQuery(idx int, retrievedDomains []string, scores []float64) (Evaluation, error) {
	if idx < 0 || idx >= len(b.queries) {
		return Evaluation{}, fmt.Errorf("query index %d out of range [0, %d)", idx, len(b.queries))
	}
	expected := toSet(b.queries[idx].ExpectedDomains)
	retrieved := toSet(retrievedDomains)

	hit := 0
	for d := range retrieved {
		if expected[d] {
			hit++
		}
	}

	var precision, recall, f1 float64
	if len(retrieved) > 0 {
		precision = float64(hit) / float64(len(retrieved))
	}
	if len(expected) == 0 {
		recall = 1
	} else {
		recall = float64(hit) / float64(len(expected))
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	ev := Evaluation{
		Index:            idx,
		Query:            b.queries[idx].Query,
		Precision:        precision,
		Recall:           recall,
		F1:               f1,
		AverageRelevance: mean(scores),
	}
	b.results = append(b.results, ev)

	dist := make([]float64, len(scores))
	for i, s := range scores {
		dist[i] = 1 - s
	}
	b.distances = append(b.distances, dist)
	return ev, nil
}

func (b *Benchmark) Results() []Evaluation {
	return append([]Evaluation(nil), b.results...)
}

// BenchmarkSummary holds the means over all evaluated queries.
type BenchmarkSummary struct {
	MeanPrecision    float64 `json:"mean_precision" yaml:"mean_precision"`
	MeanRecall       float64 `json:"mean_recall" yaml:"mean_recall"`
	MeanF1           float64 `json:"mean_f1" yaml:"mean_f1"`
	MeanRelevance    float64 `json:"mean_relevance" yaml:"mean_relevance"`
	Coherence        float64 `json:"context_coherence" yaml:"context_coherence"`
	Redundancy       float64 `json:"redundancy_score" yaml:"redundancy_score"`
	QueriesEvaluated int     `json:"queries_evaluated" yaml:"queries_evaluated"`
}

func (b *Benchmark) Summary() BenchmarkSummary {
	var p, r, f, rel []float64
	for _, ev := range b.results {
		p = append(p, ev.Precision)
		r = append(r, ev.Recall)
		f = append(f, ev.F1)
		rel = append(rel, ev.AverageRelevance)
	}
	return BenchmarkSummary{
		MeanPrecision:    mean(p),
		MeanRecall:       mean(r),
		MeanF1:           mean(f),
		MeanRelevance:    mean(rel),
		Coherence:        ContextCoherence(b.distances),
		Redundancy:       RedundancyScore(b.distances),
		QueriesEvaluated: len(b.results),
	}
}

func toSet(xs []string) map[string]bool {
	set := make(map[string]bool, len(xs))
	for _, x := range xs {
		set[x] = true
	}
	return set
}
