package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"interviewsim/internal/config"
	"interviewsim/internal/provider"
	"interviewsim/internal/sqlitedb"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show knowledge base, transcript and provider status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			fmt.Printf("interviewsim v%s\n\n", version)
			if _, err := os.Stat(cfgPath); err != nil {
				fmt.Printf("Config:       %s (not found, using defaults)\n", cfgPath)
			} else {
				fmt.Printf("Config:       %s\n", cfgPath)
			}

			a, err := openApp(ctx, cfg)
			if err != nil {
				fmt.Printf("Knowledge:    unavailable (%v)\n", err)
			} else {
				n, err := a.engine.Count(ctx)
				if err != nil {
					fmt.Printf("Knowledge:    %s store, count failed (%v)\n", cfg.VectorStore.Type, err)
				} else {
					fmt.Printf("Knowledge:    %d chunk(s) in %s store, %d domain(s), embedder %s\n",
						n, cfg.VectorStore.Type, len(a.catalogue.Domains), cfg.Embedder.Type)
				}
				a.Close()
			}

			if cfg.Transcripts.Enabled {
				store, err := openTranscripts()
				if err != nil {
					fmt.Printf("Transcripts:  unavailable (%v)\n", err)
				} else {
					ivs, turns, err := store.Stats(ctx)
					store.Close()
					if err != nil {
						fmt.Printf("Transcripts:  stats failed (%v)\n", err)
					} else {
						fmt.Printf("Transcripts:  %d interview(s), %d turn(s)\n", ivs, turns)
					}
				}
			} else {
				fmt.Printf("Transcripts:  disabled\n")
			}

			if p := provider.NewFactory(cfg, logger).HealthyProvider(ctx); p != nil {
				fmt.Printf("LLM:          %s (healthy)\n", p.Name())
			} else {
				fmt.Printf("LLM:          no healthy provider\n")
			}
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	var online bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your interviewsim installation",
		Long: `Verifies that the configuration, knowledge base, stores and providers are
correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("interviewsim doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'interviewsim init' to create a default configuration.\n")
				return fmt.Errorf("config file missing")
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n%d passed, 1 failed\n", passed)
				return err
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Catalogue and knowledge files
			cat, err := config.LoadCatalogue(cfg.Knowledge.Catalogue)
			if err != nil {
				printFail("Catalogue", err.Error())
				failed++
			} else {
				src := "built-in"
				if cfg.Knowledge.Catalogue != "" {
					src = cfg.Knowledge.Catalogue
				}
				printPass("Catalogue", fmt.Sprintf("%d domain(s), %s", len(cat.Domains), src))
				passed++

				if info, err := os.Stat(cfg.Knowledge.Dir); err != nil || !info.IsDir() {
					printFail("Knowledge dir", fmt.Sprintf("not a directory: %s", cfg.Knowledge.Dir))
					failed++
				} else {
					printPass("Knowledge dir", cfg.Knowledge.Dir)
					passed++
					for _, d := range cat.Domains {
						p := filepath.Join(cfg.Knowledge.Dir, d.File)
						if _, err := os.Stat(p); err != nil {
							printWarn("Domain: "+d.ID, fmt.Sprintf("missing %s", d.File))
							warned++
						} else {
							printPass("Domain: "+d.ID, d.File)
							passed++
						}
					}
				}
			}

			// 4. Vector store opens and holds chunks
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if a, err := openApp(ctx, cfg); err != nil {
				printFail("Vector store", err.Error())
				failed++
			} else {
				n, err := a.engine.Count(ctx)
				switch {
				case err != nil:
					printFail("Vector store", err.Error())
					failed++
				case n == 0:
					printWarn("Vector store", fmt.Sprintf("%s store is empty, run 'interviewsim ingest'", cfg.VectorStore.Type))
					warned++
				default:
					printPass("Vector store", fmt.Sprintf("%s, %d chunk(s)", cfg.VectorStore.Type, n))
					passed++
				}
				a.Close()
			}

			// 5. Transcript database writable
			if cfg.Transcripts.Enabled {
				if v, err := checkDatabase(cfg.Transcripts.DBPath); err != nil {
					printFail("Transcripts DB", err.Error())
					failed++
				} else {
					printPass("Transcripts DB", fmt.Sprintf("%s (schema v%d)", cfg.Transcripts.DBPath, v))
					passed++
				}
			}

			// 6. Providers
			providerCount := 0
			for name, p := range cfg.Providers {
				if !p.Enabled {
					continue
				}
				providerCount++
				if p.APIKey == "" && name != "ollama" {
					printWarn("Provider: "+name, "enabled but no API key configured")
					warned++
				} else {
					printPass("Provider: "+name, "configured")
					passed++
				}
			}
			if providerCount == 0 {
				printFail("Providers", "no providers enabled")
				failed++
			}
			if online {
				for name, err := range provider.NewFactory(cfg, logger).Check(ctx) {
					if err != nil {
						printFail("Reachable: "+name, err.Error())
						failed++
					} else {
						printPass("Reachable: "+name, "ok")
						passed++
					}
				}
			}

			// 7. Metrics port
			if cfg.Metrics.Enabled {
				if err := checkAddr(cfg.Metrics.Addr); err != nil {
					printWarn("Metrics addr", fmt.Sprintf("%s may be in use: %v", cfg.Metrics.Addr, err))
					warned++
				} else {
					printPass("Metrics addr", cfg.Metrics.Addr+" available")
					passed++
				}
			}

			// 8. Log file writable
			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before starting an interview.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\ninterviewsim should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed.\n")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&online, "online", false, "also health-check every enabled provider over the network")
	return cmd
}

// checkDatabase verifies dbPath is a writable SQLite file and returns its schema version.
func checkDatabase(dbPath string) (int, error) {
	db, err := sqlitedb.Open(dbPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlitedb.CheckWritable(ctx, db); err != nil {
		return 0, err
	}
	return sqlitedb.SchemaVersion(ctx, db)
}

func checkAddr(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
