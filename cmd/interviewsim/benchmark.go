package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"interviewsim/internal/metrics"

	"github.com/spf13/cobra"
)

func benchmarkCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "benchmark [suite.yaml]",
		Short: "Score retrieval quality against a suite of queries",
		Long: `Runs every query of a YAML suite against the knowledge base and reports
precision, recall and F1 of the retrieved domains, plus latency and relevance.

Suite format:
  name: core
  top_k: 5
  queries:
    - query: "How do database indexes work?"
      expected_domains: [database]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			suite, err := metrics.LoadSuite(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			bench := metrics.NewBenchmark(suite.Queries)
			for i, q := range suite.Queries {
				results, err := a.engine.Retrieve(ctx, q.Query, suite.TopK, nil)
				if err != nil {
					return fmt.Errorf("query %d: %w", i, err)
				}
				domains := make([]string, len(results))
				scores := make([]float64, len(results))
				for j, r := range results {
					domains[j] = r.Chunk.Domain
					scores[j] = r.Score
				}
				if _, err := bench.EvaluateQuery(i, domains, scores); err != nil {
					return err
				}
			}

			rm := a.engine.Metrics()
			total, _ := a.engine.Count(ctx)
			report := benchmarkReport{
				Suite:             suite.Name,
				Results:           bench.Results(),
				Summary:           bench.Summary(),
				Retrieval:         rm.Report(),
				TopKPrecision:     rm.TopKPrecision(suite.TopK, cfg.Metrics.PrecisionThreshold),
				RetrievalCoverage: rm.RetrievalCoverage(total),
				TopChunks:         rm.ChunkHitDistribution(5),
				TargetLatencyMs:   cfg.Metrics.TargetLatencyMs,
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printBenchmark(report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

type benchmarkReport struct {
	Suite             string                   `json:"suite"`
	Results           []metrics.Evaluation     `json:"results"`
	Summary           metrics.BenchmarkSummary `json:"summary"`
	Retrieval         metrics.Report           `json:"retrieval"`
	TopKPrecision     float64                  `json:"top_k_precision"`
	RetrievalCoverage float64                  `json:"retrieval_coverage"`
	TopChunks         []metrics.ChunkHit       `json:"top_chunks"`
	TargetLatencyMs   int                      `json:"target_latency_ms"`
}

func printBenchmark(r benchmarkReport) {
	fmt.Printf("Benchmark %s\n\n", r.Suite)
	fmt.Printf("  %-4s %-9s %-7s %-6s %-9s %s\n", "#", "precision", "recall", "f1", "relevance", "query")
	for _, ev := range r.Results {
		fmt.Printf("  %-4d %-9.2f %-7.2f %-6.2f %-9.3f %s\n",
			ev.Index, ev.Precision, ev.Recall, ev.F1, ev.AverageRelevance, preview(ev.Query, 60))
	}

	s := r.Summary
	fmt.Printf("\nMean precision %.2f, recall %.2f, F1 %.2f over %d queries\n",
		s.MeanPrecision, s.MeanRecall, s.MeanF1, s.QueriesEvaluated)
	fmt.Printf("Top-k precision %.2f, mean reciprocal rank %.2f, chunk coverage %.1f%%\n",
		r.TopKPrecision, r.Retrieval.MeanReciprocalRank, r.RetrievalCoverage)
	fmt.Printf("Context coherence %.2f, redundancy %.2f\n", s.Coherence, s.Redundancy)
	if len(r.TopChunks) > 0 {
		fmt.Print("Most retrieved chunks:")
		for _, h := range r.TopChunks {
			fmt.Printf(" %s (%d)", h.Key, h.Hits)
		}
		fmt.Println()
	}

	lat := r.Retrieval.AverageLatencyMs
	verdict := "within"
	if lat > float64(r.TargetLatencyMs) {
		verdict = "above"
	}
	fmt.Printf("Average latency %.1f ms (%s the %d ms target)", lat, verdict, r.TargetLatencyMs)
	if p := r.Retrieval.LatencyPercentiles; p != nil {
		fmt.Printf(", p95 %.1f ms", p.P95)
	}
	fmt.Println()
}
