package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/charkeep/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage charkeep.yaml",
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a default charkeep.yaml",
	Annotations: map[string]string{"skipConfig": "true"},
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		root, _ := cmd.Flags().GetString("root")

		path := filepath.Join(configDir, config.FileName)
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check %s: %w", path, err)
		}

		if root == "" {
			abs, err := filepath.Abs(configDir)
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", configDir, err)
			}
			root = abs
		}
		cfg := config.DefaultConfig(root)
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.SaveConfig(configDir, cfg); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing charkeep.yaml")
	configInitCmd.Flags().String("root", "", "Data root (defaults to the config directory)")
	configCmd.AddCommand(configInitCmd)
}

// ConfigCmd returns the config command
func ConfigCmd() *cobra.Command {
	return configCmd
}
