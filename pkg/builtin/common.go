package builtin

import (
	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
	"github.com/yoonhogo/conveyor/pkg/payload"
)

// singleInput returns the only entry of inputs, erroring if the stage was
// wired with zero or more than one input.
func singleInput(inputs map[string]payload.Payload, stageFn string) (payload.Payload, error) {
	if len(inputs) != 1 {
		return payload.Payload{}, conveyorerr.StageExecution("", stageFn+" requires exactly one input", nil)
	}
	for _, v := range inputs {
		return v, nil
	}
	panic("unreachable")
}
