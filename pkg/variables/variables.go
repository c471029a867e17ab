// Package variables resolves ${ENV} and {{name}} references in pipeline
// configuration (spec.md §4.9), once, before validation.
//
// Grounded on the teacher's pkg/common/config viper environment-binding
// pattern (process env as a configuration source), generalized here into an
// explicit two-form substitution pass since the teacher only reads env vars
// directly rather than interpolating them into arbitrary string values.
package variables

import (
	"fmt"
	"os"
	"regexp"

	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
)

const maxIterations = 32

var (
	envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	varPattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)
)

// Resolver resolves ${ENV} and {{name}} references against the process
// environment and a named-variable table.
type Resolver struct {
	vars map[string]string
}

// New creates a Resolver. rawVars is global.variables before its own
// ${...} references have been resolved.
func New(rawVars map[string]string) (*Resolver, error) {
	r := &Resolver{vars: make(map[string]string, len(rawVars))}
	for name, v := range rawVars {
		resolved, err := r.resolveEnvOnly(v)
		if err != nil {
			return nil, err
		}
		r.vars[name] = resolved
	}
	return r, nil
}

func (r *Resolver) resolveEnvOnly(s string) (string, error) {
	var outerErr error
	result := envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		v, ok := os.LookupEnv(name)
		if !ok {
			outerErr = fmt.Errorf("environment variable %q is not set", name)
			return match
		}
		return v
	})
	if outerErr != nil {
		return "", conveyorerr.Config("variable resolution failed", outerErr)
	}
	return result, nil
}

// Resolve substitutes ${ENV} and {{name}} in s, iterating to a fixed point
// (spec.md §4.9 "Nesting is resolved iteratively until fixed point").
func (r *Resolver) Resolve(s string) (string, error) {
	current := s
	for i := 0; i < maxIterations; i++ {
		next, changed, err := r.resolveOnce(current)
		if err != nil {
			return "", err
		}
		if !changed {
			return next, nil
		}
		current = next
	}
	return "", conveyorerr.Config(
		fmt.Sprintf("variable resolution did not converge after %d iterations (possible cycle)", maxIterations),
		nil)
}

func (r *Resolver) resolveOnce(s string) (string, bool, error) {
	changed := false
	var resolveErr error

	withEnv := envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		v, ok := os.LookupEnv(name)
		if !ok {
			resolveErr = fmt.Errorf("environment variable %q is not set", name)
			return match
		}
		changed = true
		return v
	})
	if resolveErr != nil {
		return "", false, conveyorerr.Config("variable resolution failed", resolveErr)
	}

	withVars := varPattern.ReplaceAllStringFunc(withEnv, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		v, ok := r.vars[name]
		if !ok {
			resolveErr = fmt.Errorf("variable %q is not defined in global.variables", name)
			return match
		}
		changed = true
		return v
	})
	if resolveErr != nil {
		return "", false, conveyorerr.Config("variable resolution failed", resolveErr)
	}

	return withVars, changed, nil
}

// ResolveStrings walks config recursively, resolving every string value
// into a new map and leaving config unmodified (spec.md §4.9 "every string value in every
// stage's config").
func (r *Resolver) ResolveStrings(config map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(config))
	for k, v := range config {
		resolved, err := r.resolveValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = resolved
	}
	return out, nil
}

func (r *Resolver) resolveValue(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return r.Resolve(val)
	case map[string]interface{}:
		return r.ResolveStrings(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			resolved, err := r.resolveValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}
