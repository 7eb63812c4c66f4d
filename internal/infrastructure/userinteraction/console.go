package userinteraction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/application/service"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"github.com/fatih/color"
)

var _ output.ProgressPort = (*ConsoleProgress)(nil)

// ConsoleProgress prints session progress for the ask command.
type ConsoleProgress struct {
	out     io.Writer
	verbose bool
}

func NewConsoleProgress(out io.Writer, verbose bool) *ConsoleProgress {
	if out == nil {
		out = color.Output
	}
	return &ConsoleProgress{out: out, verbose: verbose}
}

func (u *ConsoleProgress) ShowIteration(ctx context.Context, iteration, maxIterations int) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(u.out, "\n━━━ Итерация %d/%d ━━━\n", iteration, maxIterations)
}

func (u *ConsoleProgress) ShowToolStart(ctx context.Context, tool entity.ToolName, arguments string) {
	icon, name := getToolDisplay(tool)

	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(u.out, "\n%s %s\n", icon, name)

	if summary := formatToolArguments(tool, arguments); summary != "" {
		dim := color.New(color.Faint)
		dim.Fprintf(u.out, "   %s\n", summary)
	}
}

func (u *ConsoleProgress) ShowToolResult(ctx context.Context, tool entity.ToolName, result string, isError bool) {
	if isError {
		red := color.New(color.FgRed)
		red.Fprint(u.out, "❌ Ошибка: ")

		dim := color.New(color.Faint)
		dim.Fprintln(u.out, truncate(strings.TrimPrefix(result, "Error: "), 300))
		return
	}

	green := color.New(color.FgGreen)
	green.Fprintf(u.out, "✓ %s\n", formatToolResult(tool, result))
	if u.verbose {
		dim := color.New(color.Faint)
		dim.Fprintln(u.out, indent(truncate(result, 1500)))
	}
}

func (u *ConsoleProgress) ShowReflection(ctx context.Context, note string) {
	blue := color.New(color.FgBlue)
	blue.Fprint(u.out, "\n💭 Размышление: ")

	dim := color.New(color.Faint)
	dim.Fprintln(u.out, truncate(note, 500))
}

func (u *ConsoleProgress) ShowAnswer(ctx context.Context, r entity.SessionResult) {
	fmt.Fprintln(u.out)
	switch r.Reason {
	case entity.ReasonAnswered:
		color.New(color.FgGreen, color.Bold).Fprintln(u.out, "✅ Ответ")
	case entity.ReasonBudgetExhausted:
		color.New(color.FgYellow, color.Bold).Fprintln(u.out, "⚠️ Бюджет исчерпан, ответ не уверенный")
	default:
		red := color.New(color.FgRed, color.Bold)
		if r.Failure != nil {
			red.Fprintf(u.out, "❌ Сессия завершилась ошибкой (%s)\n", r.Failure.Kind)
			fmt.Fprintln(u.out, r.Failure.Message)
		} else {
			red.Fprintln(u.out, "❌ Сессия завершилась ошибкой")
		}
		u.showStats(r)
		return
	}

	fmt.Fprintln(u.out, r.Answer)
	if r.Justification != "" {
		color.New(color.Faint).Fprintln(u.out, r.Justification)
	}
	if len(r.Citations) > 0 {
		cites := make([]string, 0, len(r.Citations))
		for _, o := range r.Cited() {
			cites = append(cites, fmt.Sprintf("#%d %s", o.Seq, o.Tool))
		}
		fmt.Fprintf(u.out, "Источники: %s\n", strings.Join(cites, ", "))
	}
	u.showStats(r)
}

func (u *ConsoleProgress) showStats(r entity.SessionResult) {
	dim := color.New(color.Faint)
	dim.Fprintf(u.out, "Итераций: %d | Вызовов инструментов: %d | Время: %s\n",
		r.Iterations, r.ToolCalls, r.Elapsed.Round(10*time.Millisecond))
}

func getToolDisplay(tool entity.ToolName) (string, string) {
	displays := map[entity.ToolName][2]string{
		entity.ToolGlobalBrowse: {"🎞️", "Обзор видео"},
		entity.ToolClipSearch:   {"🔎", "Поиск клипов"},
		entity.ToolClipQuery:    {"🎬", "Вопрос по клипам"},
		entity.ToolFrameQuery:   {"🖼️", "Анализ кадров"},
	}

	if display, ok := displays[tool]; ok {
		return display[0], display[1]
	}
	return "🔧", string(tool)
}

func formatToolArguments(tool entity.ToolName, arguments string) string {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return ""
	}

	switch tool {
	case entity.ToolGlobalBrowse, entity.ToolClipSearch:
		if query, ok := args["query"].(string); ok {
			return fmt.Sprintf("Запрос: %s", truncate(query, 80))
		}

	case entity.ToolClipQuery:
		question, _ := args["question"].(string)
		var clips []string
		if list, ok := args["clip_indices"].([]interface{}); ok {
			for _, c := range list {
				clips = append(clips, fmt.Sprint(c))
			}
		}
		if c, ok := args["clip_index"].(float64); ok {
			clips = append(clips, fmt.Sprint(c))
		}
		return fmt.Sprintf("Клипы: %s | Вопрос: %s", strings.Join(clips, ", "), truncate(question, 60))

	case entity.ToolFrameQuery:
		clip, _ := args["clip_index"].(float64)
		start, _ := args["start"].(float64)
		end, _ := args["end"].(float64)
		return fmt.Sprintf("Клип %d, %s-%s", int(clip), entity.FormatTimestamp(start), entity.FormatTimestamp(end))
	}

	return ""
}

func formatToolResult(tool entity.ToolName, result string) string {
	switch tool {
	case entity.ToolGlobalBrowse, entity.ToolClipSearch, entity.ToolFrameQuery:
		return firstLine(result)

	case entity.ToolClipQuery:
		return fmt.Sprintf("Ответов по клипам: %d", strings.Count(result, "## Clip "))
	}

	return truncate(firstLine(result), 100)
}

func firstLine(s string) string {
	return strings.SplitN(s, "\n", 2)[0]
}

func indent(s string) string {
	return "   " + strings.ReplaceAll(s, "\n", "\n   ")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return service.TruncateUTF8(s, maxLen) + "..."
}
