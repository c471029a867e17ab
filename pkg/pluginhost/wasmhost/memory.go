package wasmhost

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// callJSON invokes a guest-exported function that takes one JSON buffer
// (pointer, length) and returns one packed (pointer<<32 | length) result,
// per this host's alloc/dealloc calling convention (grounded on
// pkg/wasm/module.go's ReadString/WriteString memory helpers, generalized
// from raw strings to whole JSON payloads). The guest must export "alloc"
// and "dealloc" functions; this mirrors the allocator contract every
// wasm-bindgen-style guest already exposes for passing owned buffers
// across the boundary.
func (p *Plugin) callJSON(ctx context.Context, funcName string, in []byte) ([]byte, error) {
	mod := p.instance

	inPtr, err := p.writeBuffer(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("writing argument buffer: %w", err)
	}
	defer p.free(ctx, inPtr, uint32(len(in)))

	fn := mod.ExportedFunction(funcName)
	if fn == nil {
		return nil, fmt.Errorf("guest does not export %q", funcName)
	}

	results, callErr := fn.Call(ctx, uint64(inPtr), uint64(len(in)))
	if callErr != nil {
		// A trap surfaces here as a non-nil error from Call; the caller
		// converts this into a StageExecutionError (spec.md §4.4.5).
		return nil, callErr
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("guest function %q returned %d values, want 1", funcName, len(results))
	}

	packed := results[0]
	outPtr := uint32(packed >> 32)
	outLen := uint32(packed)

	out, ok := mod.Memory().Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("reading result buffer at %d, len %d", outPtr, outLen)
	}
	// Copy out of guest memory before freeing it: Read returns a slice
	// backed by the guest's own linear memory.
	buf := make([]byte, len(out))
	copy(buf, out)
	p.free(ctx, outPtr, outLen)

	return buf, nil
}

func (p *Plugin) writeBuffer(ctx context.Context, data []byte) (uint32, error) {
	alloc := p.instance.ExportedFunction("alloc")
	if alloc == nil {
		return 0, fmt.Errorf("guest does not export \"alloc\"")
	}
	results, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("calling alloc: %w", err)
	}
	ptr := uint32(results[0])
	if len(data) > 0 && !p.instance.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("writing %d bytes at %d", len(data), ptr)
	}
	return ptr, nil
}

func (p *Plugin) free(ctx context.Context, ptr, length uint32) {
	dealloc := p.instance.ExportedFunction("dealloc")
	if dealloc == nil {
		return
	}
	if _, err := dealloc.Call(ctx, uint64(ptr), uint64(length)); err != nil {
		p.logger.Warn("dealloc call failed", zap.Error(err))
	}
}
