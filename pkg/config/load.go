package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// LoadFile reads a pipeline configuration file and decodes it as TOML
// (spec.md §6.1 "the exact surface syntax is a front-end concern"; this is
// that front end). If the file looks like the legacy sources/transforms/
// sinks shape (spec.md §9 Open Question), it is first rewritten into the
// DAG shape by legacyDocument.toPipeline.
func LoadFile(path string) (*Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline config %q: %w", path, err)
	}
	return Load(raw)
}

// Load decodes TOML bytes into a Pipeline, running the legacy-shape
// preprocessor first when applicable.
func Load(raw []byte) (*Pipeline, error) {
	var legacy legacyDocument
	if err := toml.Unmarshal(raw, &legacy); err == nil && legacy.isLegacyShape() {
		p, err := legacy.toPipeline()
		if err != nil {
			return nil, err
		}
		p.Defaults()
		return p, nil
	}

	var p Pipeline
	if err := toml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parsing pipeline config: %w", err)
	}
	p.Defaults()
	return &p, nil
}
