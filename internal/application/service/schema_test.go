package service

import (
	"encoding/json"
	"testing"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

func TestValidateArgs(t *testing.T) {
	def := entity.ToolDefinition{
		Name: "frame_query",
		Params: []entity.ParamSpec{
			{Name: "clip_index", Type: entity.ParamInteger, Required: true},
			{Name: "start", Type: entity.ParamNumber, Required: true},
			{Name: "query", Type: entity.ParamString},
			{Name: "include_frames", Type: entity.ParamBoolean},
			{Name: "clip_indices", Type: entity.ParamIntegerArray},
		},
	}

	tests := []struct {
		name    string
		args    string
		wantErr bool
		field   string
	}{
		{name: "valid", args: `{"clip_index":1,"start":2.5}`},
		{name: "valid with optionals", args: `{"clip_index":1,"start":2,"query":"dog","include_frames":true,"clip_indices":[1,2]}`},
		{name: "missing required", args: `{"start":2}`, wantErr: true, field: "clip_index"},
		{name: "null required", args: `{"clip_index":null,"start":2}`, wantErr: true, field: "clip_index"},
		{name: "fractional integer", args: `{"clip_index":1.5,"start":2}`, wantErr: true, field: "clip_index"},
		{name: "string for number", args: `{"clip_index":1,"start":"2"}`, wantErr: true, field: "start"},
		{name: "array with fraction", args: `{"clip_index":1,"start":2,"clip_indices":[1,2.2]}`, wantErr: true, field: "clip_indices"},
		{name: "unknown field", args: `{"clip_index":1,"start":2,"speed":3}`, wantErr: true, field: "speed"},
		{name: "not an object", args: `[1,2]`, wantErr: true},
		{name: "empty args", args: ``, wantErr: true, field: "clip_index"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgs(def, json.RawMessage(tt.args))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, entity.ErrInvalidArgument)
			if tt.field != "" {
				var ve *entity.ValidationError
				if assert.ErrorAs(t, err, &ve) {
					assert.Equal(t, tt.field, ve.Field)
				}
			}
		})
	}
}
