// Package wasmhost implements the WASM plugin host (spec.md §4.4): it
// instantiates a guest module with a capability-scoped sandbox, invokes a
// fixed four-operation interface, and adapts results into stage.Stage.
//
// Grounded directly on the teacher's pkg/wasm/runtime.go (wazero runtime +
// WASI preview1 instantiation, the "already compiled" duplicate-load
// guard) and pkg/wasm/module.go (module instance lifecycle, ReadBytes/
// WriteBytes memory helpers). The spec asks for WebAssembly *Components*
// (Component Model, WASI preview 2, a WIT world) — the teacher's wazero
// usage, and wazero's mainline API as used throughout the retrieved
// corpus, is core-module WASI preview1 with no Component Model host. So
// the guest interface here (metadata/validate_config/execute/
// produces_output) is four core-module exported functions operating over
// a JSON buffer calling convention (alloc/dealloc + pointer/length pair),
// which is the idiomatic wazero-core equivalent of the spec's WIT world
// and is what pkg/wasm/module.go's ReadString/WriteString exist to
// support. This is recorded as a deliberate, named deviation, not a
// silent simplification (see DESIGN.md).
package wasmhost

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/yoonhogo/conveyor/pkg/common/metrics"
	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
)

// Config configures the wazero runtime a Host starts.
type Config struct {
	// MaxMemoryPages bounds a guest's linear memory (1 page = 64KB),
	// the wazero-core equivalent of the spec's resource limits
	// (pkg/wasm/security.go ResourceLimits.MaxMemoryPages).
	MaxMemoryPages uint32
	Logger         *zap.Logger
	Metrics        *metrics.Collector
}

// Host compiles and instantiates WASM guest modules. One Host is created
// per pipeline run (spec.md §4.4.4 "instantiated once per pipeline run").
type Host struct {
	runtime wazero.Runtime
	logger  *zap.Logger
	metrics *metrics.Collector
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	plugins map[string]*Plugin
}

// New starts a wazero runtime with WASI preview1 instantiated, mirroring
// the teacher's NewRuntime.
func New(cfg Config) (*Host, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	runtimeConfig := wazero.NewRuntimeConfig()
	if cfg.MaxMemoryPages > 0 {
		runtimeConfig = runtimeConfig.WithMemoryLimitPages(cfg.MaxMemoryPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		cancel()
		return nil, fmt.Errorf("instantiating WASI: %w", err)
	}

	return &Host{
		runtime: rt,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		plugins: make(map[string]*Plugin),
	}, nil
}

// Load compiles wasmBytes, instantiates it once under the given sandbox
// root, and returns a Plugin wrapping its stage capabilities. Loading the
// same name twice is rejected (spec.md §3.4 invariant 6).
func (h *Host) Load(name string, wasmBytes []byte, sandboxRoot string) (p *Plugin, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.plugins[name]; exists {
		return nil, conveyorerr.PluginLoad(name, "plugin already loaded in this process", nil)
	}

	// Fault boundary around compile+instantiate+metadata-call: anything
	// here is a load-time failure, not a host crash (spec.md §4.4.5 first
	// sentence applies equally to construction, not just execute).
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = conveyorerr.PluginLoad(name, fmt.Sprintf("panic during load: %v", r), nil)
		}
	}()

	compiled, compileErr := h.runtime.CompileModule(h.ctx, wasmBytes)
	if compileErr != nil {
		return nil, conveyorerr.PluginLoad(name, "compiling module", compileErr)
	}

	modCfg := sandboxConfig(sandboxRoot).WithName(name)

	instance, instErr := h.runtime.InstantiateModule(h.ctx, compiled, modCfg)
	if instErr != nil {
		return nil, conveyorerr.PluginLoad(name, "instantiating module", instErr)
	}

	plugin := &Plugin{
		name:     name,
		instance: instance,
		ctx:      h.ctx,
		logger:   h.logger.With(zap.String("plugin", name)),
	}

	meta, metaErr := plugin.fetchMetadata()
	if metaErr != nil {
		instance.Close(h.ctx)
		return nil, conveyorerr.PluginLoad(name, "calling metadata()", metaErr)
	}
	plugin.meta = meta

	h.plugins[name] = plugin
	if h.metrics != nil {
		h.metrics.PluginLoaded("wasm")
	}
	h.logger.Info("loaded wasm plugin",
		zap.String("name", name), zap.String("version", meta.Version), zap.Int("capabilities", len(meta.Capabilities)))
	return plugin, nil
}

// Close shuts down every instantiated module and the runtime (spec.md
// §4.4.4 "dropped at pipeline completion").
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for name, p := range h.plugins {
		if err := p.instance.Close(h.ctx); err != nil {
			h.logger.Warn("error closing wasm plugin instance", zap.String("plugin", name), zap.Error(err))
		}
	}
	h.plugins = nil

	err := h.runtime.Close(h.ctx)
	h.cancel()
	return err
}
