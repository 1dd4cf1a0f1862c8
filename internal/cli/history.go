package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/charkeep/internal/ports/primary"
	"github.com/example/charkeep/internal/wire"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent flush attempts",
	Long:  "Show flush attempts recorded in the journal, newest first (default 50)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		outcome, _ := cmd.Flags().GetString("outcome")
		trigger, _ := cmd.Flags().GetString("trigger")
		limit, _ := cmd.Flags().GetInt("limit")

		if limit <= 0 {
			limit = 50
		}

		_, err := wire.AdminAdapterWithOutput(cmd.OutOrStdout()).History(NewContext(), primary.FlushHistoryFilters{
			UserID:  userID,
			Outcome: outcome,
			Trigger: trigger,
			Limit:   limit,
		})
		return err
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old journal entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("older-than")
		if days <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}

		_, err := wire.AdminAdapterWithOutput(cmd.OutOrStdout()).PruneHistory(NewContext(), days)
		return err
	},
}

func init() {
	historyCmd.Flags().String("user", "", "Filter by user id")
	historyCmd.Flags().String("outcome", "", "Filter by outcome (persisted, failed)")
	historyCmd.Flags().String("trigger", "", "Filter by trigger (periodic, save, disconnect, admin, shutdown)")
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum entries to show")

	historyPruneCmd.Flags().Int("older-than", 30, "Delete entries older than this many days")
	historyCmd.AddCommand(historyPruneCmd)
}

// HistoryCmd returns the history command
func HistoryCmd() *cobra.Command {
	return historyCmd
}
