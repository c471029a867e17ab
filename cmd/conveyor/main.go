// Command conveyor is the CLI front end for the pipeline engine
// (SPEC_FULL.md "CLI"): `conveyor run`, `conveyor validate`, and
// `conveyor plugins list`. The core packages never import this command;
// it is a thin collaborator that parses a config file, wires a registry
// and plugin hosts, and drives an executor.
//
// Grounded on the teacher's cmd/master/main.go: a cobra rootCmd,
// cobra.OnInitialize for logger setup, and os/signal SIGINT/SIGTERM
// handling for graceful shutdown.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile    string
	pluginDir  string
	logger     *zap.Logger
	jsonErrors bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "conveyor",
	Short: "Conveyor is a declarative ETL pipeline engine",
	Long: `Conveyor executes data pipelines described as a directed acyclic
graph of named stages: built-in functions, native plugins, and sandboxed
WebAssembly modules.`,
}

func init() {
	cobra.OnInitialize(initLogger)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "pipeline config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&pluginDir, "plugin-dir", "", "native and WASM plugin search directory (default: host binary directory)")
	rootCmd.PersistentFlags().BoolVar(&jsonErrors, "json-errors", false, "render failures as one JSON object per line instead of text")

	rootCmd.AddCommand(runCmd, validateCmd, pluginsCmd)
	pluginsCmd.AddCommand(pluginsListCmd)
}

func initLogger() {
	var err error
	logger, err = zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
}

func requireConfigFile() error {
	if cfgFile == "" {
		return fmt.Errorf("--config is required")
	}
	return nil
}
