package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yoonhogo/conveyor/pkg/builtin"
	"github.com/yoonhogo/conveyor/pkg/registry"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Inspect registered stage functions",
}

var pluginsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered function name",
	Long: `List every function name the registry would resolve a stage's
"function" against: built-ins always, plus any native or WASM plugin
declared in --config's global.native_plugins / global.wasm_plugins.`,
	RunE: listPlugins,
}

func listPlugins(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		reg := registry.New(logger)
		if err := builtin.RegisterAll(reg); err != nil {
			return err
		}
		for _, name := range reg.List() {
			fmt.Println(name)
		}
		return nil
	}

	eng, _, err := buildEngine(cfgFile, pluginDir)
	if err != nil {
		reportFailure(err)
		return err
	}
	defer eng.Close()

	for _, name := range eng.Registry.List() {
		fmt.Println(name)
	}
	return nil
}
