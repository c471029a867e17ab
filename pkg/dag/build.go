package dag

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/yoonhogo/conveyor/pkg/config"
	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
	"github.com/yoonhogo/conveyor/pkg/registry"
)

// Builder constructs and validates a Graph from logical configuration
// (spec.md §4.5). Order matters for error reporting: duplicate ids, then
// unknown functions, then missing input references, then cycles, then
// levels, then per-stage config validation.
type Builder struct {
	registry *registry.Registry
	logger   *zap.Logger
}

// New creates a Builder bound to the registry stages resolve against.
func New(reg *registry.Registry, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{registry: reg, logger: logger}
}

// Build runs the §4.5 procedure over specs (already variable-resolved:
// spec.md invariant 7, "variable substitution is performed exactly once,
// before validation") without enforcing §3.4 invariant 4 (source/sink
// presence) — callers that only have a bare []config.StageSpec and no
// pipeline-level pure_producer flag to consult (tests, tooling building
// partial graphs) get the rest of §4.5 without that pipeline-level
// constraint. Real pipeline validation goes through BuildPipeline.
func (b *Builder) Build(specs []config.StageSpec) (*Graph, error) {
	return b.build(specs, false, false)
}

// BuildPipeline runs the same procedure as Build but also enforces spec.md
// §3.4 invariant 4 ("at least one stage has empty inputs[] (a source) and
// at least one sink-style stage ... exists unless the pipeline is
// explicitly a pure producer"), using pipeline.PureProducer as the named
// escape hatch. This is what cmd/conveyor calls, so every pipeline actually
// run through the CLI is checked against the invariant.
func (b *Builder) BuildPipeline(pipeline *config.Pipeline) (*Graph, error) {
	return b.build(pipeline.Stages, pipeline.PureProducer, true)
}

func (b *Builder) build(specs []config.StageSpec, pureProducer, enforceSourceSink bool) (*Graph, error) {
	if err := rejectDuplicateIDs(specs); err != nil {
		return nil, err
	}

	nodes := make(map[string]*Node, len(specs))
	order := make([]string, 0, len(specs))
	for _, spec := range specs {
		s, err := b.registry.Get(spec.Function)
		if err != nil {
			return nil, conveyorerr.Graph(spec.ID, fmt.Sprintf("unknown function %q", spec.Function))
		}
		nodes[spec.ID] = &Node{
			ID:          spec.ID,
			FunctionRef: spec.Function,
			Stage:       s,
			Inputs:      spec.Inputs,
			Config:      spec.Config,
		}
		order = append(order, spec.ID)
	}

	if err := rejectUnknownInputs(nodes, order); err != nil {
		return nil, err
	}

	if err := detectCycles(nodes, order); err != nil {
		return nil, err
	}

	computeLevels(nodes, order)

	if err := b.validateStages(nodes, order); err != nil {
		return nil, err
	}

	g := &Graph{Nodes: nodes, Order: order}
	g.Sources, g.Sinks = classify(nodes, order)
	g.Levels = groupByLevel(nodes, order)

	if enforceSourceSink {
		if err := checkSourceAndSink(g, pureProducer); err != nil {
			return nil, err
		}
	}

	b.logger.Debug("dag built",
		zap.Int("stages", len(order)),
		zap.Int("levels", len(g.Levels)))

	return g, nil
}

// rejectDuplicateIDs enforces invariant 1 deterministically regardless of
// declaration order (spec.md §8 testable property 3).
func rejectDuplicateIDs(specs []config.StageSpec) error {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if seen[s.ID] {
			return conveyorerr.Graph(s.ID, fmt.Sprintf("duplicate stage id %q", s.ID))
		}
		seen[s.ID] = true
	}
	return nil
}

// rejectUnknownInputs enforces invariant 2: every inputs[] entry refers to
// a declared id in the same pipeline.
func rejectUnknownInputs(nodes map[string]*Node, order []string) error {
	for _, id := range order {
		n := nodes[id]
		for _, in := range n.Inputs {
			if _, ok := nodes[in]; !ok {
				return conveyorerr.Graph(id, fmt.Sprintf("input %q does not refer to a declared stage", in))
			}
		}
	}
	return nil
}

type color int

const (
	white color = iota
	gray
	black
)

// detectCycles enforces invariant 3 via depth-first gray/black coloring,
// naming the offending stage id per spec.md §4.5 step 4 and §8 property 2.
func detectCycles(nodes map[string]*Node, order []string) error {
	colors := make(map[string]color, len(nodes))

	var visit func(id string) error
	visit = func(id string) error {
		switch colors[id] {
		case black:
			return nil
		case gray:
			return conveyorerr.Graph(id, fmt.Sprintf("cycle detected involving stage %q", id))
		}
		colors[id] = gray
		for _, in := range nodes[id].Inputs {
			if err := visit(in); err != nil {
				return err
			}
		}
		colors[id] = black
		return nil
	}

	for _, id := range order {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// computeLevels assigns Level per spec.md §3.3: 0 for sources, else
// 1 + max(level of inputs). Safe post-detectCycles (no cycles remain), so
// memoized recursion terminates.
func computeLevels(nodes map[string]*Node, order []string) {
	memo := make(map[string]int, len(nodes))

	var level func(id string) int
	level = func(id string) int {
		if l, ok := memo[id]; ok {
			return l
		}
		n := nodes[id]
		if len(n.Inputs) == 0 {
			memo[id] = 0
			return 0
		}
		max := 0
		for _, in := range n.Inputs {
			if l := level(in); l > max {
				max = l
			}
		}
		memo[id] = max + 1
		return max + 1
	}

	for _, id := range order {
		nodes[id].Level = level(id)
	}
}

// validateStages calls each stage's own Validate(config) in declaration
// order, reporting the first offending stage id (spec.md §4.5 step 6).
func (b *Builder) validateStages(nodes map[string]*Node, order []string) error {
	for _, id := range order {
		n := nodes[id]
		if err := n.Stage.Validate(n.Config); err != nil {
			return conveyorerr.Config(fmt.Sprintf("stage %q: %s", id, err.Error()), err)
		}
	}
	return nil
}

// checkSourceAndSink enforces invariant 4: at least one source stage
// always, and at least one sink-style stage (produces_output=false) unless
// the pipeline is explicitly a pure producer (config.Pipeline.PureProducer,
// spec.md §3.4 invariant 4 "unless the pipeline is explicitly a pure
// producer").
func checkSourceAndSink(g *Graph, pureProducer bool) error {
	if len(g.Sources) == 0 {
		return conveyorerr.Graph("", "pipeline has no source stage (a stage with empty inputs[])")
	}
	if !pureProducer && len(g.Sinks) == 0 {
		return conveyorerr.Graph("", "pipeline has no sink-style stage (produces_output=false); mark pipeline.pure_producer=true if this is intentional")
	}
	return nil
}

func classify(nodes map[string]*Node, order []string) (sources, sinks []string) {
	for _, id := range order {
		n := nodes[id]
		if len(n.Inputs) == 0 {
			sources = append(sources, id)
		}
		if !n.Stage.ProducesOutput() {
			sinks = append(sinks, id)
		}
	}
	return sources, sinks
}

func groupByLevel(nodes map[string]*Node, order []string) [][]*Node {
	maxLevel := 0
	for _, id := range order {
		if nodes[id].Level > maxLevel {
			maxLevel = nodes[id].Level
		}
	}
	levels := make([][]*Node, maxLevel+1)
	for _, id := range order {
		n := nodes[id]
		levels[n.Level] = append(levels[n.Level], n)
	}
	return levels
}
