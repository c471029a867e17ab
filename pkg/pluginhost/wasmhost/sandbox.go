package wasmhost

import (
	"os"

	"github.com/tetratelabs/wazero"
)

// sandboxConfig builds the capability context a guest module is
// instantiated with: stdio inherited from the host, and exactly one
// preopened directory mounted as "." with full read/write permissions
// (spec.md §4.4.2). No other host resource is exposed; networking is not
// wired in, matching "disabled by default in this core".
func sandboxConfig(root string) wazero.ModuleConfig {
	return wazero.NewModuleConfig().
		WithStdin(os.Stdin).
		WithStdout(os.Stdout).
		WithStderr(os.Stderr).
		WithFSConfig(wazero.NewFSConfig().WithDirMount(root, "."))
}
