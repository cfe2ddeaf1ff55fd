package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// coerceAndDefault mutates doc in place: fills property defaults declared in
// the schema and coerces scalar values toward the declared type, mirroring the
// behavior the original validator was configured with (useDefaults +
// coerceTypes). Only properties/items declarations are honored; combinators
// are left to the compiled schema.
func coerceAndDefault(doc map[string]any, schemaNode map[string]any) {
	props, ok := schemaNode["properties"].(map[string]any)
	if !ok {
		return
	}
	for name, rawProp := range props {
		prop, ok := rawProp.(map[string]any)
		if !ok {
			continue
		}
		val, present := doc[name]
		if !present {
			if def, hasDef := prop["default"]; hasDef {
				doc[name] = def
			}
			continue
		}
		doc[name] = coerceValue(val, prop)
	}
}

func coerceValue(val any, prop map[string]any) any {
	switch declaredType(prop) {
	case "string":
		switch t := val.(type) {
		case float64:
			return trimFloat(t)
		case bool:
			return strconv.FormatBool(t)
		}
	case "number":
		if s, ok := val.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
	case "integer":
		if s, ok := val.(string); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return float64(n)
			}
		}
	case "object":
		if m, ok := val.(map[string]any); ok {
			coerceAndDefault(m, prop)
			return m
		}
	case "array":
		items, ok := prop["items"].(map[string]any)
		if !ok {
			return val
		}
		arr, ok := val.([]any)
		if !ok {
			return val
		}
		for i, el := range arr {
			if m, isObj := el.(map[string]any); isObj && declaredType(items) == "object" {
				coerceAndDefault(m, items)
				arr[i] = m
			} else {
				arr[i] = coerceValue(el, items)
			}
		}
		return arr
	}
	return val
}

func declaredType(prop map[string]any) string {
	switch t := prop["type"].(type) {
	case string:
		return t
	case []any:
		// Union types: coerce toward the first named scalar.
		for _, cand := range t {
			if s, ok := cand.(string); ok && s != "null" {
				return s
			}
		}
	}
	return ""
}

// trimFloat renders a JSON number the way a human wrote it: no trailing
// zeros, no scientific notation for the magnitudes invoices use.
func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprintf("%g", f)
}
