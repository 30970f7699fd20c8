package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"takumi/internal/history"
)

var historyLimit int

// historyCmd manages the local session archive
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past resolution sessions",
	Long: `Browse the local session archive.

Subcommands:
  list - List recent sessions, newest first
  show - Show one session with its strategy trials`,
	RunE: runHistoryList,
}

// historyListCmd lists recent sessions
var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions, newest first",
	RunE:  runHistoryList,
}

// historyShowCmd shows one session with its trials
var historyShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session with its strategy trials",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum sessions to list")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}

func openHistory() (*history.Store, error) {
	store, err := history.Open(cfg.Paths.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}
	return store, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.ListSessions(historyLimit)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions recorded")
		return nil
	}

	for _, sess := range sessions {
		fmt.Printf("%s  %-7s  %s  %d components\n",
			sess.StartedAt.Local().Format(time.RFC3339),
			sess.Status,
			sess.ID,
			len(sess.Manifest))
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.GetSession(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("session %s: %s\n", sess.ID, sess.Status)
	fmt.Printf("  started:  %s\n", sess.StartedAt.Local().Format(time.RFC3339))
	fmt.Printf("  finished: %s\n", sess.FinishedAt.Local().Format(time.RFC3339))
	if sess.RecipePath != "" {
		fmt.Printf("  recipe:   %s\n", sess.RecipePath)
	}
	fmt.Printf("  components:\n")
	for id, reqs := range sess.Manifest {
		fmt.Printf("    %s (%d requirements)\n", id, len(reqs))
	}
	fmt.Printf("  trials:\n")
	for _, trial := range sess.Trials {
		marker := "FAIL"
		if trial.Success {
			marker = " OK "
		}
		fmt.Printf("    [%s] %-20s %s\n", marker, trial.Strategy, trial.Duration.Round(time.Millisecond))
	}
	return nil
}
