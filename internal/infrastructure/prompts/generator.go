package prompts

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

type ParamInfo struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

type ToolInfo struct {
	Name        string
	Granularity string
	Description string
	Params      []ParamInfo
	Output      string
}

type PlannerPromptData struct {
	Tools []ToolInfo
}

// GeneratePlannerPrompt renders the planner system prompt. Tools keep the
// registry order so the prompt is stable between calls.
func GeneratePlannerPrompt(baseTemplate string, tools []entity.ToolDefinition) (string, error) {
	toolInfos := make([]ToolInfo, 0, len(tools))

	for _, def := range tools {
		info := ToolInfo{
			Name:        string(def.Name),
			Granularity: string(def.Granularity),
			Description: def.Description,
			Output:      def.Output,
		}
		for _, p := range def.Params {
			typ := string(p.Type)
			if p.Type == entity.ParamIntegerArray {
				typ = "array of integers"
			}
			info.Params = append(info.Params, ParamInfo{
				Name:        p.Name,
				Type:        typ,
				Required:    p.Required,
				Description: p.Description,
			})
		}
		toolInfos = append(toolInfos, info)
	}

	data := PlannerPromptData{
		Tools: toolInfos,
	}

	tmpl, err := template.New("planner").Parse(baseTemplate)
	if err != nil {
		return "", fmt.Errorf("prompts.GeneratePlannerPrompt: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("prompts.GeneratePlannerPrompt: %w", err)
	}

	return buf.String(), nil
}
