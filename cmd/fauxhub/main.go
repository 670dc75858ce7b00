// Fauxhub makes emulated devices discoverable on the local network.
//
// It resolves the address devices are advertised on, derives stable
// device serials, listens on the SSDP discovery group, and loads the
// WebAssembly handler plugins that implement each device's on/off logic.
//
// Usage:
//
//	fauxhub [command] [flags]
//
// See 'fauxhub --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/fauxhub/internal/logging"
	"github.com/muurk/fauxhub/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	logLevel   string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "fauxhub",
	Short: "Emulated device discovery hub",
	Long: `Fauxhub advertises emulated devices on the local network.

Devices are grouped under handler plugins (WebAssembly modules exporting
on, off and get_state). Each device gets a serial derived from its name, so
it keeps the same identity across restarts and reinstalls.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default is the user config directory)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fauxhub %s\n", version.Full())
	},
}
