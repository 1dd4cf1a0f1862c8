package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/charkeep/internal/wire"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the migration registry",
}

var registryCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare the migration registry with stored records",
	Long: `Compare the migration registry with stored records.

Disagreements are reported only; nothing is repaired. Exits non-zero when
any are found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := wire.AdminAdapterWithOutput(cmd.OutOrStdout()).Check(NewContext())
		if err != nil {
			return err
		}
		if !report.Consistent() {
			cmd.SilenceUsage = true
			return fmt.Errorf("registry check found inconsistencies")
		}
		return nil
	},
}

func init() {
	registryCmd.AddCommand(registryCheckCmd)
}

// RegistryCmd returns the registry command
func RegistryCmd() *cobra.Command {
	return registryCmd
}
