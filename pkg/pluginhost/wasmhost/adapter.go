package wasmhost

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
	"github.com/yoonhogo/conveyor/pkg/payload"
	"github.com/yoonhogo/conveyor/pkg/stage"
)

// wasmStage adapts one guest capability to the core stage.Stage contract
// (spec.md §9 "Trait-object polymorphism ... plugin stages are wrapped by
// adapters that translate payloads and errors at the boundary").
type wasmStage struct {
	plugin     *Plugin
	capability guestCapability
}

func (s *wasmStage) Name() string { return s.capability.Name }

func (s *wasmStage) Metadata() stage.Metadata {
	category := stage.CategoryTransform
	switch s.capability.Kind {
	case "source":
		category = stage.CategorySource
	case "sink":
		category = stage.CategorySink
	}
	return stage.Metadata{
		Category:    category,
		Description: fmt.Sprintf("WASM capability %q from plugin %q", s.capability.Name, s.plugin.name),
		Origin:      stage.OriginWasm,
	}
}

func (s *wasmStage) Validate(config map[string]interface{}) error {
	s.plugin.callMu.Lock()
	defer s.plugin.callMu.Unlock()

	body, err := json.Marshal(struct {
		Operation string                 `json:"operation"`
		Config    map[string]interface{} `json:"config"`
	}{Operation: s.capability.Name, Config: config})
	if err != nil {
		return conveyorerr.Config(fmt.Sprintf("marshaling config for %q", s.Name()), err)
	}

	out, err := s.plugin.callJSON(s.plugin.ctx, "validate_config", body)
	if err != nil {
		return conveyorerr.Config(fmt.Sprintf("plugin %q trapped during validate_config", s.plugin.name), err)
	}

	var result guestResult
	if err := json.Unmarshal(out, &result); err != nil {
		return conveyorerr.Config("parsing validate_config result", err)
	}
	if result.Error != nil {
		return conveyorerr.Config(fmt.Sprintf("stage %q config invalid", s.Name()), result.Error.asError())
	}
	return nil
}

func (s *wasmStage) Execute(ctx *stage.Context, inputs map[string]payload.Payload, config map[string]interface{}) (payload.Payload, error) {
	// One guest instance serves every stage this plugin exports; calls
	// are serialized since the instance is not assumed reentrant (spec.md
	// §5 "The WASM host serializes calls to a given instance").
	s.plugin.callMu.Lock()
	defer s.plugin.callMu.Unlock()

	in, err := encodeInputs(s.capability.Name, inputs, config)
	if err != nil {
		return payload.Payload{}, conveyorerr.StageExecution(ctx.StageID, "encoding inputs for WASM guest", err)
	}

	out, callErr := s.plugin.callJSON(s.plugin.ctx, "execute", in)
	if callErr != nil {
		// A guest trap is caught here rather than propagating to crash
		// the host (spec.md §4.4.5 "A trap in the guest is caught at the
		// host boundary and converted to a stage failure").
		return payload.Payload{}, conveyorerr.StageExecution(ctx.StageID, fmt.Sprintf("plugin %q trapped", s.plugin.name), callErr)
	}

	result, decodeErr := decodeResult(out)
	if decodeErr != nil {
		return payload.Payload{}, conveyorerr.StageExecution(ctx.StageID, "decoding WASM guest result", decodeErr)
	}

	ctx.Logger.Debug("wasm stage executed", zap.String("plugin", s.plugin.name), zap.String("capability", s.capability.Name))
	return result, nil
}

func (s *wasmStage) ProducesOutput() bool {
	s.plugin.callMu.Lock()
	defer s.plugin.callMu.Unlock()

	body, err := json.Marshal(struct {
		Operation string `json:"operation"`
	}{Operation: s.capability.Name})
	if err != nil {
		return true
	}

	out, err := s.plugin.callJSON(s.plugin.ctx, "produces_output", body)
	if err != nil {
		return true
	}

	var result struct {
		ProducesOutput bool `json:"produces_output"`
	}
	if err := json.Unmarshal(out, &result); err != nil {
		return true
	}
	return result.ProducesOutput
}
