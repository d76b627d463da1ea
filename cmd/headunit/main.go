// Headunit is a head unit for the phone projection protocol.
//
// It dials a phone (or a bridge) over TCP or WebSocket, or listens for phones
// that dial in, and runs the projection session: video is written to an
// Annex-B file, audio streams to raw files, and keys can be injected from an
// interactive console.
//
// Usage:
//
//	headunit [command] [flags]
//
// See 'headunit --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	cfgFile  string
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "headunit",
	Short: "Phone projection head unit",
	Long: `A head unit for the phone projection protocol.

Settings come from the YAML config file (see 'headunit config path'), then
HEADUNIT_* environment variables, then command line flags.

Logging is silent unless --log-level or HEADUNIT_LOG_LEVEL is set.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default is the per-user config path)")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFile, "log-file", "", "Also write logs to this file, rotated by size")
	addSettingsFlags(pf)

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(certCmd)
	rootCmd.AddCommand(versionCmd)
}

func initLogging() error {
	level := logLevel
	if level == "" {
		level = settingsViper.GetString("log.level")
	}
	file := logFile
	if file == "" {
		file = settingsViper.GetString("log.file")
	}
	if err := logging.InitializeWithFile(level, logging.FileOptions{Path: file}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "headunit %s (commit: %s)\n", version.Version, version.Commit)
	},
}
