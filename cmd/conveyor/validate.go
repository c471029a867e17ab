package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse, resolve, and validate a pipeline without running it",
	RunE:  validatePipeline,
}

// validatePipeline runs the same control flow as run (config load, variable
// resolution, plugin loading, DAG build+validate — spec.md §4.5 step 6
// calls every stage's own Validate) and stops before execution.
func validatePipeline(cmd *cobra.Command, args []string) error {
	if err := requireConfigFile(); err != nil {
		return err
	}

	eng, pipeline, err := buildEngine(cfgFile, pluginDir)
	if err != nil {
		reportFailure(err)
		return err
	}
	defer eng.Close()

	fmt.Printf("pipeline %q (v%s) is valid: %d stage(s) across %d level(s)\n",
		pipeline.Metadata.Name, pipeline.Metadata.Version, len(eng.Graph.Order), len(eng.Graph.Levels))
	return nil
}
