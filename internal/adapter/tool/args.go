package tool

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/service"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
)

func decodeArgs(args json.RawMessage, v any) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &entity.ValidationError{Reason: "cannot decode arguments: " + err.Error()}
	}
	return nil
}

func shorten(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	head := service.TruncateUTF8(s, maxLen)
	if cut := strings.LastIndex(head, " "); cut >= maxLen/2 {
		head = head[:cut]
	}
	return head + "..."
}

func frameLines(frames []entity.Frame) string {
	var sb strings.Builder
	for _, f := range frames {
		sb.WriteString("[")
		sb.WriteString(entity.FormatTimestamp(f.Timestamp))
		sb.WriteString("] ")
		sb.WriteString(strings.TrimSpace(f.Description))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func frameTimestamps(frames []entity.Frame) []float64 {
	out := make([]float64, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Timestamp)
	}
	return out
}
