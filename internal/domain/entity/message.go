package entity

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type Message struct {
	Role    MessageRole
	Content string
	// Images holds data URLs sent alongside Content to vision-capable models.
	Images []string
	// ToolCalls is only set on model replies.
	ToolCalls []ToolCall
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// FunctionDefinition is the provider-neutral function-calling schema.
type FunctionDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}
