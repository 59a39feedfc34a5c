// Package fieldschema normalizes incoming payload values against the field
// list a device declares.
package fieldschema

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"coinwatch/internal/telemetry"
)

// Normalizer checks and canonicalizes a single value.
type Normalizer func(v any) (any, error)

/* --- normalizers --- */

func normNumber(v any) (any, error) {
	if n, ok := telemetry.AsNumber(v); ok {
		return n, nil
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			if n, ok := telemetry.AsNumber(f); ok {
				return n, nil
			}
		}
	}
	return nil, errors.New("invalid number")
}

func normBool(v any) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "true", "yes", "on":
			return true, nil
		case "0", "false", "no", "off":
			return false, nil
		}
	}
	if n, ok := telemetry.AsNumber(v); ok && (n == 0 || n == 1) {
		return n == 1, nil
	}
	return nil, errors.New("invalid bool")
}

func normString(v any) (any, error) {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), nil
	case map[string]any, []any:
		return nil, errors.New("not a scalar")
	}
	return fmt.Sprint(v), nil
}

// pass keeps values of types the schema does not know about.
func pass(v any) (any, error) { return v, nil }

/* --- registry --- */

var byType = map[telemetry.ValueType]Normalizer{
	telemetry.TNumber: normNumber,
	telemetry.TBool:   normBool,
	telemetry.TString: normString,
}

// For returns the normalizer for t; unknown types pass through.
func For(t telemetry.ValueType) Normalizer {
	if n, ok := byType[t]; ok {
		return n
	}
	return pass
}

// ValidateOne normalizes one value against its field definition.
func ValidateOne(f telemetry.Field, v any) (any, error) {
	out, err := For(f.ValueType)(v)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Key, err)
	}
	return out, nil
}

// ValidatePayload normalizes every declared field present in p and checks
// required ones. Keys the device does not declare are kept untouched.
func ValidatePayload(fields []telemetry.Field, p telemetry.Payload) (telemetry.Payload, error) {
	out := make(telemetry.Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	missing := []string{}
	var bad []string
	for _, f := range fields {
		v, ok := p.Lookup(f.Key)
		if !ok {
			if f.Required {
				missing = append(missing, f.Key)
			}
			continue
		}
		nv, err := ValidateOne(f, v)
		if err != nil {
			bad = append(bad, err.Error())
			continue
		}
		out[f.Key] = nv
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &telemetry.ValidationError{Field: "data", Reason: fmt.Sprintf("missing required fields: %v", missing)}
	}
	if len(bad) > 0 {
		return nil, &telemetry.ValidationError{Field: "data", Reason: strings.Join(bad, "; ")}
	}
	return out, nil
}
