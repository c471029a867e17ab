package config

import "fmt"

// legacyDocument is the second, legacy configuration shape spec.md §9
// mentions: separate sources/transforms/sinks arrays with auto-conversion
// to the DAG form. The spec leaves the conversion rules beyond the naming
// remap (type="csv" in sources <-> function="csv.read" with empty inputs)
// under-specified and directs implementations to "implement it as a pure
// syntactic preprocessor outside the core" if they implement it at all
// (SPEC_FULL.md "Open Question Resolution"). This file is that
// preprocessor; pkg/dag and pkg/executor never see a legacyDocument.
type legacyDocument struct {
	Metadata Metadata      `toml:"metadata"`
	Global   Global        `toml:"global"`
	ErrorHandling ErrorHandling `toml:"error_handling"`

	Sources    []legacyEntry `toml:"sources"`
	Transforms []legacyEntry `toml:"transforms"`
	Sinks      []legacyEntry `toml:"sinks"`
}

type legacyEntry struct {
	ID     string                 `toml:"id"`
	Type   string                 `toml:"type"`
	Inputs []string               `toml:"inputs"`
	Config map[string]interface{} `toml:"config"`
}

// isLegacyShape reports whether the document used the sources/transforms/
// sinks arrays rather than a flat stages[] list.
func (d *legacyDocument) isLegacyShape() bool {
	return len(d.Sources) > 0 || len(d.Transforms) > 0 || len(d.Sinks) > 0
}

// toPipeline remaps each legacy entry to a StageSpec: type -> function
// via legacyFunctionName (sources get ".read" and sinks ".write" appended
// to an undotted type, e.g. type="csv" -> function="csv.read"; transforms
// keep the bare type name), plus the "inputs defaults to the immediately
// preceding declared stage" rule SPEC_FULL.md resolves the open question
// with.
func (d *legacyDocument) toPipeline() (*Pipeline, error) {
	p := &Pipeline{
		Metadata:      d.Metadata,
		Global:        d.Global,
		ErrorHandling: d.ErrorHandling,
	}

	var previousID string
	appendStage := func(id, function string, inputs []string, cfg map[string]interface{}) error {
		if id == "" {
			return fmt.Errorf("legacy config: entry with function %q is missing an id", function)
		}
		p.Stages = append(p.Stages, StageSpec{ID: id, Function: function, Inputs: inputs, Config: cfg})
		previousID = id
		return nil
	}

	for _, src := range d.Sources {
		fn := legacyFunctionName(src.Type, "read")
		if err := appendStage(src.ID, fn, []string{}, src.Config); err != nil {
			return nil, err
		}
	}
	for _, tr := range d.Transforms {
		fn := legacyFunctionName(tr.Type, "")
		inputs := tr.Inputs
		if inputs == nil && previousID != "" {
			inputs = []string{previousID}
		}
		if err := appendStage(tr.ID, fn, inputs, tr.Config); err != nil {
			return nil, err
		}
	}
	for _, sink := range d.Sinks {
		fn := legacyFunctionName(sink.Type, "write")
		inputs := sink.Inputs
		if inputs == nil && previousID != "" {
			inputs = []string{previousID}
		}
		if err := appendStage(sink.ID, fn, inputs, sink.Config); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// legacyFunctionName remaps a legacy "type" to a registered function name.
// type="csv" in a sources/sinks entry becomes "csv.read"/"csv.write" per
// spec.md §9's explicit example; a type that is already dotted (e.g. a
// plugin-provided "myplugin.transform") passes through unchanged.
func legacyFunctionName(typ, verb string) string {
	if verb == "" {
		return typ
	}
	for _, r := range typ {
		if r == '.' {
			return typ
		}
	}
	return typ + "." + verb
}
