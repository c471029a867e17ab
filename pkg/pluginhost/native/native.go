// Package native implements the native dynamic-library plugin host
// (spec.md §4.3): it locates a shared library by plugin name, verifies its
// exported declaration, calls its registration entry point, and registers
// the stages it declares into the shared registry.
//
// Go's plugin package loads a shared object into the same process and
// hands back symbols with their original Go types intact. Unlike the
// FFI boundary the spec describes — ABI-stable length-prefixed strings, a
// C-layout v-table, a const-literal string constructor for static
// initialization (spec.md §4.3.1, §6.2, §9) — a Go plugin can export an
// ordinary stage.Stage value directly, because both sides share the same
// compiled type definitions. The declared-symbol contract, API version
// check, capability list, and fault boundary around load/register are
// preserved verbatim from the spec; the C-ABI marshaling machinery has no
// counterpart here because there is nothing unsafe to marshal across. This
// is a named, deliberate simplification, not an oversight: grounded on
// `pkg/wasm/runtime.go`'s "already compiled" duplicate-load guard and
// `pkg/wasm/security.go`'s panic/timeout fault-boundary pattern, which is
// the closest idiom the teacher uses for isolating a loaded extension.
package native

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"plugin"

	"github.com/hashicorp/go-hclog"

	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
	"github.com/yoonhogo/conveyor/pkg/registry"
	"github.com/yoonhogo/conveyor/pkg/stage"
)

// HostAPIVersion is the ABI version this host implements. A plugin's
// declared version must equal this exactly, or loading fails (spec.md
// §3.4 invariant 6, §4.3.1).
const HostAPIVersion uint32 = 1

// CapabilityKind mirrors stage.Category at the plugin declaration boundary.
type CapabilityKind string

const (
	CapabilitySource    CapabilityKind = "source"
	CapabilityTransform CapabilityKind = "transform"
	CapabilitySink      CapabilityKind = "sink"
)

// Capability is one stage factory a plugin declares (spec.md §4.3.3).
// Loading fails if a plugin declares zero capabilities.
type Capability struct {
	Name    string
	Kind    CapabilityKind
	Factory func() stage.Stage
}

// Registrar is the mutable registry reference a plugin's Register function
// receives (spec.md §6.2 "mutable reference to a registry object whose
// v-table is defined by the ABI"). A plugin may declare zero or more
// capabilities by calling Declare.
type Registrar struct {
	capabilities []Capability
}

// Declare appends one capability.
func (r *Registrar) Declare(c Capability) {
	r.capabilities = append(r.capabilities, c)
}

// Declaration is the symbol every native plugin must export under the name
// "PluginDeclaration" — the idiomatic Go equivalent of the spec's
// statically-initialized `_plugin_declaration` symbol (Go plugin symbols
// are exported package-level identifiers, not C-mangled names, so there is
// no name-mangling concern to disable).
type Declaration struct {
	APIVersion  uint32
	Name        string
	Version     string
	Description string
	Register    func(*Registrar)
}

// Host loads native plugin libraries by name and registers the stages they
// declare into a shared registry.Registry.
type Host struct {
	searchPath string
	logger     hclog.Logger
	reg        *registry.Registry

	mu     sync.Mutex
	loaded map[string]bool
}

// New constructs a Host. searchPath is the directory plugin libraries are
// resolved from; an empty string defaults to the host binary's own
// directory (spec.md §4.3.5, §6.5).
func New(reg *registry.Registry, searchPath string, logger hclog.Logger) *Host {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if searchPath == "" {
		if exe, err := osExecutableDir(); err == nil {
			searchPath = exe
		}
	}
	return &Host{searchPath: searchPath, logger: logger, reg: reg, loaded: make(map[string]bool)}
}

// pathFor computes a plugin library's filename from its name and the host
// OS's shared-object suffix (spec.md §4.3.5).
func (h *Host) pathFor(name string) string {
	return filepath.Join(h.searchPath, name+soSuffix())
}

func soSuffix() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// Load resolves, opens, and registers one plugin by name. A plugin may be
// loaded at most once per process (spec.md §3.4 invariant 6).
func (h *Host) Load(name string) (err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.loaded[name] {
		return conveyorerr.PluginLoad(name, "plugin already loaded in this process", nil)
	}

	// Fault boundary: a panic anywhere below (a malformed symbol, a
	// plugin's init() panicking, a buggy Register callback) is caught and
	// reported as a PluginLoadError instead of taking down the host
	// process (spec.md §4.3.4).
	defer func() {
		if r := recover(); r != nil {
			err = conveyorerr.PluginLoad(name, fmt.Sprintf("panic during load: %v", r), nil)
		}
	}()

	path := h.pathFor(name)
	lib, openErr := plugin.Open(path)
	if openErr != nil {
		return conveyorerr.PluginLoad(name, fmt.Sprintf("opening %s", path), openErr)
	}

	sym, lookupErr := lib.Lookup("PluginDeclaration")
	if lookupErr != nil {
		return conveyorerr.PluginLoad(name, "missing PluginDeclaration symbol", lookupErr)
	}

	decl, ok := sym.(*Declaration)
	if !ok {
		return conveyorerr.PluginLoad(name, "PluginDeclaration symbol has the wrong type", nil)
	}

	return h.registerDeclaration(name, decl)
}

// registerDeclaration validates and registers an already-resolved
// Declaration. Split out from Load so the version-check/capability/
// registration logic can be exercised directly in tests without requiring
// a real compiled .so (plugin.Open has no in-memory test double).
func (h *Host) registerDeclaration(name string, decl *Declaration) error {
	if decl.APIVersion != HostAPIVersion {
		return conveyorerr.PluginLoad(name, fmt.Sprintf("ABI version mismatch: plugin declares %d, host expects %d", decl.APIVersion, HostAPIVersion), nil)
	}

	registrar := &Registrar{}
	decl.Register(registrar)

	if len(registrar.capabilities) == 0 {
		return conveyorerr.PluginLoad(name, "plugin declared zero capabilities", nil)
	}

	for _, cap := range registrar.capabilities {
		s := cap.Factory()
		if regErr := h.reg.Register(s); regErr != nil {
			return conveyorerr.PluginLoad(name, fmt.Sprintf("registering capability %q", cap.Name), regErr)
		}
	}

	h.loaded[name] = true
	h.logger.Info("loaded native plugin",
		"name", name, "version", decl.Version, "capabilities", len(registrar.capabilities))
	return nil
}

// LoadAll loads every named plugin in order, stopping at the first error
// (spec.md §2 "plugin loading (native then WASM)").
func (h *Host) LoadAll(names []string) error {
	for _, name := range names {
		if err := h.Load(name); err != nil {
			return err
		}
	}
	return nil
}

// Loaded reports the names of every plugin successfully loaded so far
// (cmd/conveyor counts them for the plugins-loaded metric).
func (h *Host) Loaded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.loaded))
	for name := range h.loaded {
		names = append(names, name)
	}
	return names
}
