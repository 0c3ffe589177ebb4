// Package cli holds the chatsync commands.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/johndosdos/chatsync/internal/config"
)

type cfgKey struct{}

// NewRootCmd returns the chatsync command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatsync",
		Short:         "Chat server and client with optimistic message sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     cfg.LogLevel,
				AddSource: cfg.LogLevel <= slog.LevelDebug,
			})))

			cmd.SetContext(context.WithValue(cmd.Context(), cfgKey{}, cfg))
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newTailCmd(),
		newSendCmd(),
		newEditCmd(),
		newDeleteCmd(),
	)
	return root
}

func configFrom(cmd *cobra.Command) config.Config {
	cfg, _ := cmd.Context().Value(cfgKey{}).(config.Config)
	return cfg
}
