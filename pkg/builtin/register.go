package builtin

import (
	"github.com/yoonhogo/conveyor/pkg/registry"
	"github.com/yoonhogo/conveyor/pkg/stage"
)

// RegisterAll registers every built-in stage into r. Called once at engine
// construction, before any plugin host loads (spec.md §4.2 "Built-ins are
// registered at construction").
func RegisterAll(r *registry.Registry) error {
	stages := []stage.Stage{
		CSVRead{},
		CSVWrite{},
		JSONRead{},
		JSONWrite{},
		Filter{},
		Map{},
		GroupBy{},
		StreamToRecords{},
	}
	for _, s := range stages {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}
