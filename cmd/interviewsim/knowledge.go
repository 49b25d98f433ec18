package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"interviewsim/internal/knowledge"

	"github.com/spf13/cobra"
)

func ingestCmd() *cobra.Command {
	var watch, reset bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and store the knowledge base",
		Long: `Reads one .txt file per catalogue domain from knowledge.dir and indexes it.
Unchanged files are skipped. With --watch, files are re-indexed when they change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if reset {
				if err := a.engine.Clear(ctx); err != nil {
					return fmt.Errorf("clear store: %w", err)
				}
				logger.Info("vector store cleared")
			}

			if err := ingestSources(ctx, a, a.sources()); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			w := &knowledge.Watcher{Dir: cfg.Knowledge.Dir, Logger: logger}
			return w.Run(ctx, func(paths []string) {
				var changed []knowledge.Source
				for _, p := range paths {
					if src, ok := knowledge.SourceForPath(cfg.Knowledge.Dir, a.sources(), p); ok {
						changed = append(changed, src)
					}
				}
				if len(changed) == 0 {
					return
				}
				if err := ingestSources(ctx, a, changed); err != nil {
					logger.Error("re-ingest failed", "err", err)
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and re-ingest changed files")
	cmd.Flags().BoolVar(&reset, "reset", false, "clear the vector store first")
	return cmd
}

func ingestSources(ctx context.Context, a *app, sources []knowledge.Source) error {
	docs, err := knowledge.LoadDocuments(a.cfg.Knowledge.Dir, sources, logger)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no knowledge files found in %s", a.cfg.Knowledge.Dir)
	}
	report, err := a.engine.Ingest(ctx, docs)
	if err != nil {
		return err
	}
	total, _ := a.engine.Count(ctx)
	fmt.Printf("Ingested %d document(s), %d chunk(s); %d unchanged. Store holds %d chunk(s).\n",
		report.Documents, report.Chunks, report.Skipped, total)
	return nil
}

func searchCmd() *cobra.Command {
	var topK int
	var domains []string
	var showContext bool
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Retrieve the knowledge-base chunks closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.resolveDomains(domains)
			if err != nil {
				return err
			}
			if topK == 0 {
				topK = cfg.Knowledge.DefaultTopK
			}

			results, err := a.engine.Retrieve(ctx, strings.Join(args, " "), topK, ids)
			if err != nil {
				return err
			}
			if showContext {
				fmt.Println(a.assembler().Assemble(results, cfg.Knowledge.MaxContextLength))
				return nil
			}
			if len(results) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for i, r := range results {
				fmt.Printf("%d. [%s] %s  score=%.3f\n", i+1, r.Chunk.Domain, r.Chunk.Key(), r.Score)
				fmt.Printf("   %s\n\n", preview(r.Chunk.Text, 200))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (default: knowledge.defaultTopK)")
	cmd.Flags().StringSliceVarP(&domains, "domain", "d", nil, "restrict to domains (id or name, repeatable)")
	cmd.Flags().BoolVar(&showContext, "context", false, "print the assembled context instead of the result list")
	return cmd
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
