package schema

import (
	"math"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
)

// ValidateArguments mechanically checks decoded JSON arguments against an
// object schema: every required parameter must be present, and every provided
// value must match its declared type. It runs before dispatch so that a
// schema violation never reaches a handler.
func ValidateArguments(s *jsonschema.Schema, args map[string]any) error {
	if s == nil {
		return nil
	}

	for _, name := range s.Required {
		if _, ok := args[name]; !ok {
			return errors.Errorf("missing required parameter: %s", name)
		}
	}

	if s.Properties == nil {
		return nil
	}

	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		val, ok := args[pair.Key]
		if !ok {
			continue
		}
		if err := validateValue(pair.Key, pair.Value, val); err != nil {
			return err
		}
	}

	return nil
}

func validateValue(name string, prop *jsonschema.Schema, val any) error {
	if prop == nil || prop.Type == "" {
		return nil
	}

	switch prop.Type {
	case "string":
		if _, ok := val.(string); !ok {
			return typeError(name, "string", val)
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return typeError(name, "boolean", val)
		}
	case "number":
		if !isNumber(val) {
			return typeError(name, "number", val)
		}
	case "integer":
		f, ok := asFloat(val)
		if !ok || f != math.Trunc(f) {
			return typeError(name, "integer", val)
		}
	case "array":
		items, ok := val.([]any)
		if !ok {
			return typeError(name, "array", val)
		}
		if prop.Items != nil {
			for _, item := range items {
				if err := validateValue(name, prop.Items, item); err != nil {
					return err
				}
			}
		}
	case "object":
		obj, ok := val.(map[string]any)
		if !ok {
			return typeError(name, "object", val)
		}
		if err := ValidateArguments(prop, obj); err != nil {
			return err
		}
	}

	if len(prop.Enum) > 0 && !inEnum(prop.Enum, val) {
		return errors.Errorf("parameter %s: value is not one of the allowed values", name)
	}

	return nil
}

func typeError(name, expected string, val any) error {
	return errors.Errorf("parameter %s: expected %s, got %s", name, expected, jsonTypeName(val))
}

func isNumber(val any) bool {
	_, ok := asFloat(val)
	return ok
}

// asFloat accepts the numeric shapes json.Unmarshal can produce, plus native
// ints for callers that build argument maps in code.
func asFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func inEnum(enum []any, val any) bool {
	for _, e := range enum {
		if reflect.DeepEqual(e, val) {
			return true
		}
		// json decodes numbers to float64, enum values may be typed
		if ef, ok := asFloat(e); ok {
			if vf, ok := asFloat(val); ok && ef == vf {
				return true
			}
		}
	}
	return false
}

func jsonTypeName(val any) string {
	switch val.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return reflect.TypeOf(val).String()
}
