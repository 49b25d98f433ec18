package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"interviewsim/internal/channel"
	"interviewsim/internal/config"
	"interviewsim/internal/domain"
	"interviewsim/internal/interview"
	"interviewsim/internal/memory"
	"interviewsim/internal/metrics"
	"interviewsim/internal/provider"
	"interviewsim/internal/tui"

	"github.com/spf13/cobra"
)

func interviewCmd() *cobra.Command {
	var (
		domains     []string
		difficulty  string
		useTUI      bool
		answerAudio string
		maxTurns    int
	)
	cmd := &cobra.Command{
		Use:   "interview",
		Short: "Run a mock interview",
		Long: `Starts an interview on the chosen domains. Each answer is matched against the
knowledge base and the LLM asks the next question. Type /feedback for an
assessment and /quit to stop.

With --answer-audio the opening question is asked, the recording is
transcribed and answered, and the command exits.`,
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

			if len(domains) == 0 {
				domains = cfg.Interview.Domains
			}
			ids, err := a.resolveDomains(domains)
			if err != nil {
				return err
			}
			if difficulty == "" {
				difficulty = cfg.Interview.Difficulty
			}
			if !interview.ValidDifficulty(difficulty) {
				return fmt.Errorf("%w: difficulty must be one of %v", domain.ErrInvalidConfiguration, interview.Difficulties)
			}
			if maxTurns == 0 {
				maxTurns = cfg.Interview.MaxTurns
			}

			gen, err := provider.NewFactory(cfg, logger).Generator()
			if err != nil {
				return fmt.Errorf("llm provider: %w", err)
			}

			var transcripts domain.TranscriptStore
			if cfg.Transcripts.Enabled {
				store, err := memory.NewSQLiteStore(cfg.Transcripts.DBPath, logger)
				if err != nil {
					return fmt.Errorf("transcript store: %w", err)
				}
				defer store.Close()
				transcripts = store
			}

			var speech *provider.WhisperProvider
			if cfg.Speech.Enabled || answerAudio != "" {
				speech = newWhisper(cfg)
			}

			if cfg.Metrics.Enabled {
				srv := serveMetrics(cfg.Metrics.Addr)
				defer srv.Close()
			}

			iv, err := interview.New(interview.Config{
				Retriever:        a.engine,
				Generator:        gen,
				Prompts:          interview.NewPromptBuilder(interview.PromptConfig{Difficulty: difficulty, DomainNames: a.domainNames()}),
				Assembler:        a.assembler(),
				Transcripts:      transcripts,
				Provider:         gen.Name(),
				TopK:             cfg.Knowledge.DefaultTopK,
				MaxContextLength: cfg.Knowledge.MaxContextLength,
				HistoryTurns:     cfg.Interview.HistoryTurns,
				Logger:           logger,
			})
			if err != nil {
				return err
			}

			s := interview.NewSession(interview.SessionConfig{
				Domains:    ids,
				Difficulty: difficulty,
				MaxTurns:   maxTurns,
			})
			logger.Info("interview configured", "interview", s.ID, "provider", gen.Name(), "domains", ids, "difficulty", difficulty)

			switch {
			case answerAudio != "":
				return answerOnce(ctx, iv, speech, s, answerAudio)
			case useTUI:
				var tr tui.Transcriber
				if speech != nil {
					tr = speech
				}
				title := fmt.Sprintf("interviewsim · %s · %s", interview.NewPromptBuilder(interview.PromptConfig{DomainNames: a.domainNames()}).Topic(ids), difficulty)
				err := tui.Run(tui.New(ctx, iv, tr, s, title))
				iv.End(s)
				return err
			default:
				var tr channel.Transcriber
				if speech != nil {
					tr = speech
				}
				cli := channel.NewCLI(channel.CLIConfig{
					Interviewer: iv,
					Transcriber: tr,
					Logger:      logger,
					Spinner:     true,
				})
				return cli.Run(ctx, s)
			}
		},
	}
	cmd.Flags().StringSliceVarP(&domains, "domain", "d", nil, "interview domains (id or name, repeatable; default: interview.domains or all)")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "beginner | intermediate | advanced (default: interview.difficulty)")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "full-screen terminal UI")
	cmd.Flags().StringVar(&answerAudio, "answer-audio", "", "answer the opening question with a recorded audio file and exit")
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "turn limit (default: interview.maxTurns)")
	return cmd
}

func newWhisper(cfg *config.Config) *provider.WhisperProvider {
	key := cfg.Speech.APIKey
	if key == "" {
		key = cfg.Providers["openai"].APIKey
	}
	return provider.NewWhisperProvider(provider.WhisperConfig{
		APIBase:    cfg.Speech.APIBase,
		APIKey:     key,
		Model:      cfg.Speech.Model,
		MaxRetries: 2,
		Logger:     logger,
	})
}

func answerOnce(ctx context.Context, iv *interview.Interviewer, speech *provider.WhisperProvider, s *interview.Session, path string) error {
	question, err := iv.Start(ctx, s)
	if err != nil {
		return err
	}
	defer iv.End(s)
	fmt.Printf("--- Interviewer ---\n%s\n\n", question)

	answer, err := speech.TranscribeAnswer(ctx, path)
	if err != nil {
		return fmt.Errorf("transcribe %s: %w", path, err)
	}
	fmt.Printf("--- You (transcribed) ---\n%s\n\n", answer)

	reply, err := iv.Respond(ctx, s, answer)
	if err != nil {
		return err
	}
	fmt.Printf("--- Interviewer ---\n%s\n", reply)
	return nil
}

// serveMetrics exposes the Prometheus text endpoint until the returned server is closed.
func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics endpoint stopped", "addr", addr, "err", err)
		}
	}()
	logger.Info("metrics endpoint listening", "addr", addr)
	return srv
}
