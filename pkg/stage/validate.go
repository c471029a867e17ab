package stage

import (
	"fmt"
	"regexp"
)

// CheckParameters validates a raw config map against a stage's declared
// Parameters: required fields, and the single validation rule each
// parameter carries (enum, range, length, or pattern — spec.md §4.1
// "Parameter metadata"). Built-in stages call this from Validate so each
// one doesn't hand-roll the same required/enum/range checks.
func CheckParameters(params []Parameter, config map[string]interface{}) error {
	for _, p := range params {
		v, present := config[p.Name]
		if !present {
			if p.Required {
				return fmt.Errorf("missing required parameter %q", p.Name)
			}
			continue
		}
		if p.Rule == nil {
			continue
		}
		if err := checkRule(p.Name, p.Rule, v); err != nil {
			return err
		}
	}
	return nil
}

func checkRule(name string, rule *ValidationRule, v interface{}) error {
	if len(rule.AllowedValues) > 0 {
		for _, allowed := range rule.AllowedValues {
			if allowed == v {
				return nil
			}
		}
		return fmt.Errorf("parameter %q: value %v is not one of %v", name, v, rule.AllowedValues)
	}

	if rule.Min != nil || rule.Max != nil {
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("parameter %q: expected a number, got %T", name, v)
		}
		if rule.Min != nil && f < *rule.Min {
			return fmt.Errorf("parameter %q: %v is below minimum %v", name, f, *rule.Min)
		}
		if rule.Max != nil && f > *rule.Max {
			return fmt.Errorf("parameter %q: %v is above maximum %v", name, f, *rule.Max)
		}
		return nil
	}

	if rule.MinLength != nil || rule.MaxLength != nil {
		n, ok := length(v)
		if !ok {
			return fmt.Errorf("parameter %q: expected a string or array, got %T", name, v)
		}
		if rule.MinLength != nil && n < *rule.MinLength {
			return fmt.Errorf("parameter %q: length %d is below minimum %d", name, n, *rule.MinLength)
		}
		if rule.MaxLength != nil && n > *rule.MaxLength {
			return fmt.Errorf("parameter %q: length %d is above maximum %d", name, n, *rule.MaxLength)
		}
		return nil
	}

	if rule.Pattern != "" {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("parameter %q: pattern rule requires a string, got %T", name, v)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("parameter %q: invalid pattern %q: %w", name, rule.Pattern, err)
		}
		if !re.MatchString(s) {
			return fmt.Errorf("parameter %q: value %q does not match pattern %q", name, s, rule.Pattern)
		}
	}

	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func length(v interface{}) (int, bool) {
	switch x := v.(type) {
	case string:
		return len(x), true
	case []interface{}:
		return len(x), true
	default:
		return 0, false
	}
}
