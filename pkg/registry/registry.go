// Package registry implements the process-wide mapping from function name
// to stage instance (spec.md §4.2).
//
// Grounded on the teacher's pkg/wasm/registry.go UDFRegistry: a
// sync.RWMutex-guarded map with Register/Get/List and an "already
// registered" duplicate check, applied here to the Stage contract instead
// of WASM UDFs.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/yoonhogo/conveyor/pkg/stage"
)

// Registry maps function name -> stage instance. Write-once during
// construction (built-ins registered, then plugins as their hosts load
// successfully), read-only during execution (spec.md §5 "Shared-resource
// policy").
type Registry struct {
	mu     sync.RWMutex
	stages map[string]stage.Stage
	logger *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		stages: make(map[string]stage.Stage),
		logger: logger,
	}
}

// Register adds a stage under its own Name(). It fails if the name is
// already taken (spec.md §4.2).
func (r *Registry) Register(s stage.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.stages[name]; exists {
		return fmt.Errorf("function %q is already registered", name)
	}

	r.stages[name] = s
	r.logger.Debug("stage registered",
		zap.String("function", name),
		zap.String("origin", string(s.Metadata().Origin)))
	return nil
}

// Get resolves a function name to its stage instance.
func (r *Registry) Get(name string) (stage.Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.stages[name]
	if !exists {
		return nil, fmt.Errorf("function %q is not registered", name)
	}
	return s, nil
}

// List returns every registered function name, sorted for deterministic
// output (used by `conveyor plugins list`).
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stages))
	for name := range r.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
