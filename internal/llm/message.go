package llm

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single function invocation requested by the model.
// Arguments holds the raw JSON argument object as the model produced it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one entry in a chat exchange. Tag carries the name of the
// pipeline node that produced the message; it is never sent to the model.
type Message struct {
	Role       Role
	Content    string
	Tag        string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolSpec describes a callable tool offered to the model. Parameters is
// a JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// System builds a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolResult builds a tool message answering the given tool call.
func ToolResult(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}
