package entity

type ToolName string

const (
	ToolGlobalBrowse ToolName = "global_browse"
	ToolClipSearch   ToolName = "clip_search"
	ToolClipQuery    ToolName = "clip_query"
	ToolFrameQuery   ToolName = "frame_query"
)

func (t ToolName) String() string {
	return string(t)
}

type Granularity string

const (
	GranularityGlobal Granularity = "global"
	GranularityClip   Granularity = "clip"
	GranularityFrame  Granularity = "frame"
)

type ParamType string

const (
	ParamInteger      ParamType = "integer"
	ParamNumber       ParamType = "number"
	ParamString       ParamType = "string"
	ParamBoolean      ParamType = "boolean"
	ParamIntegerArray ParamType = "integer_array"
)

type ParamSpec struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

// ToolDefinition is the catalog entry shown to the planner.
type ToolDefinition struct {
	Name        ToolName
	Granularity Granularity
	Description string
	Params      []ParamSpec
	Output      string
}

// Parameters renders the parameter list as a JSON-schema object for function calling.
func (d ToolDefinition) Parameters() map[string]interface{} {
	properties := make(map[string]interface{}, len(d.Params))
	required := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		prop := map[string]interface{}{
			"description": p.Description,
		}
		if p.Type == ParamIntegerArray {
			prop["type"] = "array"
			prop["items"] = map[string]interface{}{"type": "integer"}
		} else {
			prop["type"] = string(p.Type)
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func (d ToolDefinition) Param(name string) (ParamSpec, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// Provenance lists the parts of the video a tool consulted.
type Provenance struct {
	ClipIndices     []int     `json:"clip_indices,omitempty"`
	FrameTimestamps []float64 `json:"frame_timestamps,omitempty"`
}

type ToolOutput struct {
	Text       string
	Provenance Provenance
}
