package contract

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the conversation window supplied back to the
// reasoning engine on the next user message.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type EventType string

const (
	EventToken      EventType = "token"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventFinal      EventType = "final"
	EventError      EventType = "error"
)

// Event is one outbound client-protocol message. Exactly one final or error
// event terminates a turn.
type Event struct {
	Type    EventType      `json:"type"`
	Text    string         `json:"text,omitempty"`
	Name    string         `json:"name,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Result  any            `json:"result,omitempty"`
	Message string         `json:"message,omitempty"`
}

func TokenEvent(text string) Event {
	return Event{Type: EventToken, Text: text}
}

func ToolCallEvent(name string, args map[string]any) Event {
	return Event{Type: EventToolCall, Name: name, Args: args}
}

func ToolResultEvent(name string, result any) Event {
	return Event{Type: EventToolResult, Name: name, Result: result}
}

func FinalEvent(text string) Event {
	return Event{Type: EventFinal, Text: text}
}

func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

// EmitFunc delivers one event to the client. A non-nil return aborts the
// turn; the transport is gone.
type EmitFunc func(Event) error

// ToolResult is the executor's answer for a single tool invocation. Result
// always holds JSON-marshalable data; tool-domain rejections are encoded in
// it rather than raised.
type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}
