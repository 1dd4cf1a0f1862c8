package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/charkeep/internal/version"
)

// NewRootCmd assembles the charkeep command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "charkeep",
		Short:   "charkeep - server-side character record persistence",
		Version: version.String(),
		Long: `charkeep stores character records for a multiplayer game host.
It keeps rotated backups of every record, imports each user's client-held
record once, and flushes buffered saves on a schedule and on disconnect.`,
		PersistentPreRunE:  PreRun,
		PersistentPostRunE: PostRun,
		SilenceUsage:       true,
	}
	AddGlobalFlags(rootCmd)

	// Runtime
	rootCmd.AddCommand(ServeCmd())

	// Offline administration
	rootCmd.AddCommand(RecordsCmd())
	rootCmd.AddCommand(BackupsCmd())
	rootCmd.AddCommand(RegistryCmd())
	rootCmd.AddCommand(HistoryCmd())
	rootCmd.AddCommand(ConfigCmd())

	return rootCmd
}
