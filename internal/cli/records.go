package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/charkeep/internal/wire"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect stored character records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List current records",
	Long:  "List every current record with its size, modification time and migration status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := wire.AdminAdapterWithOutput(cmd.OutOrStdout()).Records(NewContext())
		return err
	},
}

func init() {
	recordsCmd.AddCommand(recordsListCmd)
}

// RecordsCmd returns the records command
func RecordsCmd() *cobra.Command {
	return recordsCmd
}
