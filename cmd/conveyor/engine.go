package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/yoonhogo/conveyor/pkg/builtin"
	"github.com/yoonhogo/conveyor/pkg/common/metrics"
	"github.com/yoonhogo/conveyor/pkg/config"
	"github.com/yoonhogo/conveyor/pkg/dag"
	"github.com/yoonhogo/conveyor/pkg/pluginhost/native"
	"github.com/yoonhogo/conveyor/pkg/pluginhost/wasmhost"
	"github.com/yoonhogo/conveyor/pkg/registry"
	"github.com/yoonhogo/conveyor/pkg/variables"
)

// engine bundles everything built from one config file: the resolved
// pipeline, the registry it was built against, and whichever plugin hosts
// got loaded (kept open for the run's lifetime, per spec.md §3.5 "Plugin
// libraries remain mapped for the registry's lifetime" and §4.4.4 "WASM
// components are ... dropped at pipeline completion").
type engine struct {
	Graph    *dag.Graph
	Registry *registry.Registry
	Metrics  *metrics.Collector
	wasmHost *wasmhost.Host
}

func (e *engine) Close() error {
	if e.wasmHost != nil {
		return e.wasmHost.Close()
	}
	return nil
}

// buildEngine runs the full control flow spec.md §2 describes: load
// config, resolve variables, load native then WASM plugins, build+validate
// the DAG (§4.5). Returns the resolved pipeline alongside the engine so
// callers (run, validate) can inspect global settings without re-parsing.
func buildEngine(path, pluginSearchOverride string) (*engine, *config.Pipeline, error) {
	pipeline, err := config.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if err := pipeline.ValidateShape(); err != nil {
		return nil, nil, err
	}

	resolver, err := variables.New(pipeline.Global.Variables)
	if err != nil {
		return nil, nil, err
	}
	for i, s := range pipeline.Stages {
		resolved, err := resolver.ResolveStrings(s.Config)
		if err != nil {
			return nil, nil, err
		}
		pipeline.Stages[i].Config = resolved
	}

	m := metrics.New("engine")

	reg := registry.New(logger)
	if err := builtin.RegisterAll(reg); err != nil {
		return nil, nil, err
	}

	searchPath := pluginSearchOverride
	if searchPath == "" {
		if s, err := config.LoadSettings(""); err == nil {
			searchPath = s.PluginSearchPath
		}
	}

	if len(pipeline.Global.NativePlugins) > 0 {
		nativeHost := native.New(reg, searchPath, hclog.New(&hclog.LoggerOptions{Name: "native-plugin"}))
		if err := nativeHost.LoadAll(pipeline.Global.NativePlugins); err != nil {
			m.PluginLoadFailed("native")
			return nil, nil, err
		}
		for range nativeHost.Loaded() {
			m.PluginLoaded("native")
		}
	}

	var wasmHost *wasmhost.Host
	if len(pipeline.Global.WasmPlugins) > 0 {
		wasmHost, err = wasmhost.New(wasmhost.Config{Logger: logger, Metrics: m})
		if err != nil {
			return nil, nil, err
		}
		cwd, err := os.Getwd()
		if err != nil {
			wasmHost.Close()
			return nil, nil, err
		}
		for _, name := range pipeline.Global.WasmPlugins {
			wasmBytes, err := os.ReadFile(filepath.Join(searchPath, name+".wasm"))
			if err != nil {
				wasmHost.Close()
				return nil, nil, fmt.Errorf("reading wasm plugin %q: %w", name, err)
			}
			p, err := wasmHost.Load(name, wasmBytes, cwd)
			if err != nil {
				wasmHost.Close()
				return nil, nil, err
			}
			for _, s := range p.Stages() {
				if err := reg.Register(s); err != nil {
					wasmHost.Close()
					return nil, nil, err
				}
			}
		}
	}

	builder := dag.New(reg, logger.Named("dag"))
	graph, err := builder.BuildPipeline(pipeline)
	if err != nil {
		if wasmHost != nil {
			wasmHost.Close()
		}
		return nil, nil, err
	}

	return &engine{Graph: graph, Registry: reg, Metrics: m, wasmHost: wasmHost}, pipeline, nil
}
