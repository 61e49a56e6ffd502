// Package flags converts configured optipng switches into command-line arguments.
package flags

import (
	"errors"
	"fmt"
	"sort"
)

// Flags represents optipng switches as a key-value map, keyed by the switch
// name without its leading dash.
// Values can be:
//   - string: generates -key value
//   - bool: true generates -key, false omits the switch
//   - []string: generates -key v for each element
type Flags map[string]any

// reserved lists switches the optimizer sets itself.
var reserved = map[string]bool{
	"o": true,
}

// Sentinel errors for flag operations.
var (
	// ErrInvalidFlagValue is returned when a flag value has an unsupported type.
	ErrInvalidFlagValue = errors.New("invalid flag value type")

	// ErrReservedFlag is returned for switches controlled by other options.
	ErrReservedFlag = errors.New("reserved flag")
)

// FromConfig validates and normalizes config values into Flags.
// Accepts string, bool, int, []string, and []any (converted to []string).
func FromConfig(cfg map[string]any) (Flags, error) {
	if cfg == nil {
		return make(Flags), nil
	}

	result := make(Flags, len(cfg))
	for k, v := range cfg {
		if reserved[k] {
			return nil, fmt.Errorf("%w: -%s (use the level option)", ErrReservedFlag, k)
		}
		switch val := v.(type) {
		case string:
			result[k] = val
		case bool:
			result[k] = val
		case int:
			// YAML numbers such as "i: 1" arrive as int.
			result[k] = fmt.Sprint(val)
		case []string:
			result[k] = val
		case []any:
			// Convert []any to []string (common from YAML parsing)
			strs := make([]string, 0, len(val))
			for _, item := range val {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: %s array contains non-string value %T", ErrInvalidFlagValue, k, item)
				}
				strs = append(strs, s)
			}
			result[k] = strs
		default:
			return nil, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidFlagValue, k, v)
		}
	}
	return result, nil
}

// ToArgs reconstructs Flags into optipng arguments.
// Output is sorted by key for deterministic ordering.
//
// Conversion rules:
//   - string: "-key", "value"
//   - bool true: "-key"
//   - bool false: (omitted)
//   - []string: "-key", "v1", "-key", "v2", ...
func ToArgs(f Flags) ([]string, error) {
	if len(f) == 0 {
		return nil, nil
	}

	// Sort keys for deterministic output
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var args []string
	for _, k := range keys {
		if reserved[k] {
			return nil, fmt.Errorf("%w: -%s", ErrReservedFlag, k)
		}
		switch val := f[k].(type) {
		case string:
			args = append(args, "-"+k, val)
		case bool:
			if val {
				args = append(args, "-"+k)
			}
		case []string:
			for _, s := range val {
				args = append(args, "-"+k, s)
			}
		default:
			return nil, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidFlagValue, k, val)
		}
	}
	return args, nil
}
