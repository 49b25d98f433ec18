package main

import (
	"context"
	"fmt"
	"strings"

	"interviewsim/internal/domain"
	"interviewsim/internal/memory"

	"github.com/spf13/cobra"
)

func transcriptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcripts",
		Short: "Browse stored interviews",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent interviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTranscripts()
			if err != nil {
				return err
			}
			defer store.Close()

			ivs, err := store.ListInterviews(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(ivs) == 0 {
				fmt.Println("No interviews recorded yet.")
				return nil
			}
			for _, iv := range ivs {
				fmt.Printf("%s  %s  %-12s %-10s %s\n",
					iv.ID, iv.UpdatedAt.Format("2006-01-02 15:04"), iv.Difficulty, iv.Provider, iv.Title)
			}
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "number of interviews")

	show := &cobra.Command{
		Use:   "show [id]",
		Short: "Print the transcript of an interview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTranscripts()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			iv, err := store.GetInterview(ctx, args[0])
			if err != nil {
				return err
			}
			if iv == nil {
				return fmt.Errorf("interview %s not found", args[0])
			}
			turns, err := store.GetTurns(ctx, iv.ID, 0)
			if err != nil {
				return err
			}

			fmt.Printf("%s\n", iv.Title)
			fmt.Printf("Domains: %s | Difficulty: %s | Provider: %s | Started: %s\n\n",
				strings.Join(iv.Domains, ", "), iv.Difficulty, iv.Provider, iv.CreatedAt.Format("2006-01-02 15:04"))
			for _, t := range turns {
				who := "Candidate"
				if t.Role == domain.RoleAssistant {
					who = "Interviewer"
				}
				fmt.Printf("%s: %s\n\n", who, t.Content)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an interview and its turns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTranscripts()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.DeleteInterview(context.Background(), args[0]); err != nil {
				return err
			}
			logger.Info("interview deleted", "interview", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

func openTranscripts() (*memory.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return memory.NewSQLiteStore(cfg.Transcripts.DBPath, logger)
}
