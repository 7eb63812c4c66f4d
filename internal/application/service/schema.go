package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

// ValidateArgs checks a raw JSON argument object against the declared
// parameters: required fields present, types matching, no unknown fields.
func ValidateArgs(def entity.ToolDefinition, args json.RawMessage) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return &entity.ValidationError{Reason: fmt.Sprintf("arguments must be a JSON object: %v", err)}
	}

	for name := range fields {
		if _, ok := def.Param(name); !ok {
			return &entity.ValidationError{Field: name, Reason: "unknown parameter"}
		}
	}

	for _, p := range def.Params {
		raw, present := fields[p.Name]
		if !present || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			if p.Required {
				return &entity.ValidationError{Field: p.Name, Reason: "required parameter missing"}
			}
			continue
		}
		if err := checkType(p, raw); err != nil {
			return err
		}
	}
	return nil
}

func checkType(p entity.ParamSpec, raw json.RawMessage) error {
	mismatch := &entity.ValidationError{Field: p.Name, Reason: "expected " + string(p.Type)}

	switch p.Type {
	case entity.ParamString:
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return mismatch
		}
	case entity.ParamBoolean:
		var b bool
		if json.Unmarshal(raw, &b) != nil {
			return mismatch
		}
	case entity.ParamNumber:
		var f float64
		if json.Unmarshal(raw, &f) != nil {
			return mismatch
		}
	case entity.ParamInteger:
		var f float64
		if json.Unmarshal(raw, &f) != nil || !isWhole(f) {
			return mismatch
		}
	case entity.ParamIntegerArray:
		var items []float64
		if json.Unmarshal(raw, &items) != nil {
			return mismatch
		}
		for _, f := range items {
			if !isWhole(f) {
				return mismatch
			}
		}
	default:
		return &entity.ValidationError{Field: p.Name, Reason: "unsupported parameter type " + string(p.Type)}
	}
	return nil
}

func isWhole(f float64) bool {
	return !math.IsInf(f, 0) && f == math.Trunc(f)
}
