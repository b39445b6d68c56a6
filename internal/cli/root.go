package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clipdot/clipd/internal/config"
	"github.com/clipdot/clipd/internal/ipc"
)

var (
	// Flags that apply to all commands
	logLevel string

	// The loaded configuration
	cfg *config.Config

	// Command-channel client, built after config load
	client *ipc.Client

	// Version information - set by main
	Version = "dev"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "clipctl",
	Short: "clipctl controls a running clipd daemon",
	Long: `clipctl talks to the clipd clipboard daemon over its local
command socket: inspect the history, promote or insert items, or
clear everything.

The daemon itself is started with the clipd binary.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		socket := ipc.SocketPath(cfg.SystemPaths.SocketDir, ipc.CommandServerBase)
		client = ipc.NewClient(socket)
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	RootCmd.AddCommand(pingCmd, historyCmd, copyCmd, pasteCmd, clearCmd)
}

// Execute runs the root command.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
