package wasmhost

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/yoonhogo/conveyor/pkg/stage"
)

// guestCapability is one stage this plugin exposes, as reported by its
// metadata() call (spec.md §4.4.1).
type guestCapability struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// guestMetadata is the result of calling metadata() on a freshly
// instantiated guest.
type guestMetadata struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	APIVersion   uint32            `json:"api_version"`
	Capabilities []guestCapability `json:"capabilities"`
}

// Plugin wraps one instantiated WASM module and serializes every call into
// it: spec.md §5 "The WASM host serializes calls to a given instance."
type Plugin struct {
	name     string
	instance api.Module
	ctx      context.Context
	logger   *zap.Logger
	meta     guestMetadata

	callMu sync.Mutex
}

// fetchMetadata calls the guest's metadata() export with an empty JSON
// argument and parses its result.
func (p *Plugin) fetchMetadata() (guestMetadata, error) {
	out, err := p.callJSON(p.ctx, "metadata", []byte("{}"))
	if err != nil {
		return guestMetadata{}, err
	}
	var meta guestMetadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return guestMetadata{}, fmt.Errorf("parsing metadata result: %w", err)
	}
	return meta, nil
}

// Stages returns one stage.Stage adapter per capability this plugin
// declared in its metadata.
func (p *Plugin) Stages() []stage.Stage {
	stages := make([]stage.Stage, 0, len(p.meta.Capabilities))
	for _, cap := range p.meta.Capabilities {
		stages = append(stages, &wasmStage{plugin: p, capability: cap})
	}
	return stages
}
