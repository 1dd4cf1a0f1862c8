// Package cli provides CLI commands for the charkeep application.
package cli

import (
	gocontext "context"
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/example/charkeep/internal/config"
	"github.com/example/charkeep/internal/ctxutil"
	"github.com/example/charkeep/internal/wire"
)

var (
	configDir string
	logLevel  string
)

// globalOperator stores the operator name for the current CLI invocation.
var globalOperator string

// AddGlobalFlags registers the flags shared by every command.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&configDir, "dir", "C", ".", "Directory holding charkeep.yaml")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (trace, debug, info, warn, error)")
}

// PreRun resolves configuration and prepares dependency injection.
// Should be called once at CLI startup in PersistentPreRunE.
func PreRun(cmd *cobra.Command, args []string) error {
	detectOperator()

	// config init runs before any configuration exists.
	if cmd.Annotations["skipConfig"] == "true" {
		return nil
	}

	cfg, err := config.Resolve(configDir)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	wire.Configure(cfg, os.Stderr)
	return nil
}

// PostRun releases resources opened by wire.
func PostRun(cmd *cobra.Command, args []string) error {
	if err := wire.Close(); err != nil {
		return fmt.Errorf("failed to close resources: %w", err)
	}
	return nil
}

func detectOperator() {
	globalOperator = "cli"
	if u, err := user.Current(); err == nil && u.Username != "" {
		globalOperator = "cli:" + u.Username
	}
}

// NewContext creates a context.Background() with the operator embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() gocontext.Context {
	ctx := gocontext.Background()
	if globalOperator != "" {
		return ctxutil.WithOperator(ctx, globalOperator)
	}
	return ctx
}
