package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/charkeep/internal/ports/primary"
	"github.com/example/charkeep/internal/wire"
)

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List and restore record backups",
}

var backupsListCmd = &cobra.Command{
	Use:   "list [user-id] [record-name]",
	Short: "List backups of a record, newest first",
	Long: `List backups of a record, newest first.

The INDEX column is the value accepted by 'charkeep backups restore'.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := wire.AdminAdapterWithOutput(cmd.OutOrStdout()).Backups(NewContext(), args[0], args[1])
		return err
	},
}

var backupsRestoreCmd = &cobra.Command{
	Use:   "restore [user-id] [record-name] [index]",
	Short: "Replace a record with one of its backups",
	Long: `Replace a record with one of its backups.

The current record is kept next to it with a .pre_restore suffix,
replacing any earlier pre-restore copy. Index 0 is the newest backup.

While 'charkeep serve' runs on the same root this command refuses to
run; send a restore request through the serve feed instead.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid backup index %q: must be a number", args[2])
		}

		lock, err := lockRoot("cannot restore offline while serve is running; use the serve feed")
		if err != nil {
			return err
		}
		defer releaseRoot(lock)

		_, err = wire.AdminAdapterWithOutput(cmd.OutOrStdout()).Restore(NewContext(), primary.RestoreRequest{
			UserID:     args[0],
			RecordName: args[1],
			Index:      index,
		})
		return err
	},
}

func init() {
	backupsCmd.AddCommand(backupsListCmd)
	backupsCmd.AddCommand(backupsRestoreCmd)
}

// BackupsCmd returns the backups command
func BackupsCmd() *cobra.Command {
	return backupsCmd
}
