// Package dag builds and validates the runtime graph from a logical
// pipeline configuration (spec.md §3.3, §4.5). Not directly present in the
// teacher (model-collapse-quidditch's pipeline package is a flat ordered
// list, not a graph); built fresh in its idiom: zap.Logger threading,
// struct errors, depth-first gray/black cycle detection.
package dag

import (
	"github.com/yoonhogo/conveyor/pkg/stage"
)

// Node is one stage in the runtime graph, with its level computed
// (spec.md §3.3).
type Node struct {
	ID          string
	FunctionRef string
	Stage       stage.Stage
	Inputs      []string
	Config      map[string]interface{}
	Level       int
}

// Graph is the validated runtime DAG: nodes keyed by id, plus the id order
// they were declared in (used for deterministic error messages and CLI
// listings).
type Graph struct {
	Nodes   map[string]*Node
	Order   []string
	Levels  [][]*Node // Levels[L] = all nodes with Level == L
	Sources []string  // stage ids with no inputs
	Sinks   []string  // stage ids whose stage does not produce output
}

// ByLevel returns the nodes grouped by execution level, 0-indexed.
func (g *Graph) ByLevel() [][]*Node { return g.Levels }
