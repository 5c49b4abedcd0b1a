// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/ifcli/internal/config"
	"firestige.xyz/ifcli/internal/log"
)

var (
	// Global flags
	configFile string

	// cfg is loaded once before any subcommand runs.
	cfg *config.GlobalConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ifcli",
	Short: "ifcli - interactive console for bridging, recording and replaying byte streams",
	Long: `ifcli opens TCP/UDP sockets, serial lines, files, processes and memory
buffers as numbered interfaces, records everything they receive, and lets you
replay, transmit and forward frames between them.

Features:
  - Persistent receive logs with random access replay
  - tie/exchange links forwarding frames between interfaces
  - plaintext, hex, octal and binary transmit/display modes
  - Session save/load as verified .tgz archives`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return err
		}
		return log.Init(&cfg.Log)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole(cmd.Context(), "")
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	defer log.Close()
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults only when empty)")

	// Add subcommands
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(dumpCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
