package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/application/service"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

var _ output.Planner = (*Planner)(nil)

// PromptRenderer builds the system prompt for the current tool catalog.
type PromptRenderer func(tools []entity.ToolDefinition) (string, error)

type Config struct {
	RenderSystem  PromptRenderer
	ReflectPrompt string
	Temperature   float32
	MaxTokens     int
}

// Planner asks the model for the next step. It keeps no state between
// calls; everything it knows comes from PlannerInput.
type Planner struct {
	llm    output.LLMPort
	logger output.LoggerPort
	cfg    Config
}

func New(llm output.LLMPort, logger output.LoggerPort, cfg Config) *Planner {
	return &Planner{
		llm:    llm,
		logger: logger,
		cfg:    cfg,
	}
}

func (p *Planner) Decide(ctx context.Context, in output.PlannerInput) (entity.PlanDecision, error) {
	system, err := p.cfg.RenderSystem(in.Tools)
	if err != nil {
		return entity.PlanDecision{}, fmt.Errorf("planner.Planner.Decide: render prompt: %w", err)
	}

	functions := make([]entity.FunctionDefinition, 0, len(in.Tools))
	for _, def := range in.Tools {
		functions = append(functions, entity.FunctionDefinition{
			Name:        string(def.Name),
			Description: def.Description,
			Parameters:  def.Parameters(),
		})
	}

	resp, err := p.llm.Chat(ctx, output.ChatRequest{
		Messages: []entity.Message{
			{Role: entity.RoleSystem, Content: system},
			{Role: entity.RoleUser, Content: buildUserMessage(in)},
		},
		Tools:       functions,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	})
	if err != nil {
		return entity.PlanDecision{}, fmt.Errorf("planner.Planner.Decide: %w", err)
	}

	if len(resp.Message.ToolCalls) > 1 {
		p.logger.Warn("Planner returned several tool calls, using the first", "count", len(resp.Message.ToolCalls))
	}

	decision, err := ParseDecision(resp.Message)
	if err != nil {
		p.logger.Warn("Unparseable planner reply", "error", err, "content", truncate(resp.Message.Content, 500))
		return entity.PlanDecision{}, err
	}

	if err := Validate(decision, in); err != nil {
		p.logger.Warn("Planner decision rejected", "error", err, "raw", truncate(decision.Raw, 500))
		return decision, err
	}
	return decision, nil
}

// Validate checks a parsed decision against the catalog and session state.
func Validate(d entity.PlanDecision, in output.PlannerInput) error {
	switch d.Kind {
	case entity.DecisionInvokeTool:
		var def *entity.ToolDefinition
		for i := range in.Tools {
			if in.Tools[i].Name == d.Tool {
				def = &in.Tools[i]
				break
			}
		}
		if def == nil {
			return fmt.Errorf("%w: unknown tool %q", entity.ErrMalformedDecision, d.Tool)
		}
		if err := service.ValidateArgs(*def, d.Args); err != nil {
			return fmt.Errorf("%w: %s: %v", entity.ErrMalformedDecision, d.Tool, err)
		}
	case entity.DecisionTerminate:
		if in.ToolCalls == 0 {
			return fmt.Errorf("%w: terminate before any tool was used", entity.ErrMalformedDecision)
		}
	case entity.DecisionReflect:
	default:
		return fmt.Errorf("%w: unknown decision kind %q", entity.ErrMalformedDecision, d.Kind)
	}
	return nil
}

func (p *Planner) Summarize(ctx context.Context, in output.SummaryInput) (string, error) {
	resp, err := p.llm.Chat(ctx, output.ChatRequest{
		Messages: []entity.Message{
			{Role: entity.RoleSystem, Content: p.cfg.ReflectPrompt},
			{Role: entity.RoleUser, Content: fmt.Sprintf("Question: %s\n\nObservations:\n%s", in.Question, in.Context)},
		},
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("planner.Planner.Summarize: %w", err)
	}

	summary := strings.TrimSpace(resp.Message.Content)
	if summary == "" {
		return "", fmt.Errorf("planner.Planner.Summarize: %w", errors.Join(entity.ErrMalformedDecision, errors.New("empty summary")))
	}
	return summary, nil
}

func buildUserMessage(in output.PlannerInput) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(in.Question)
	sb.WriteString("\n\nObservations so far:\n")
	sb.WriteString(in.Context)
	sb.WriteString(fmt.Sprintf("\n\nTool calls used: %d. Steps remaining: %d.", in.ToolCalls, in.Remaining))

	if len(in.Notes) > 0 {
		sb.WriteString("\n\nYour previous reply was rejected:\n")
		for _, note := range in.Notes {
			sb.WriteString("- ")
			sb.WriteString(note)
			sb.WriteString("\n")
		}
		sb.WriteString("Reply again with one valid tool call or decision.")
	}
	return sb.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return service.TruncateUTF8(s, maxLen) + "..."
}
