package core

// Role identifies the author of a message.
type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
)

// Segment identifies the origin of a message within the assembled prompt.
// Location-context blocks are injected as their own segment so downstream
// consumers can tell them apart from caller-supplied content.
type Segment string

const (
	SegmentDefault  Segment = ""
	SegmentLocation Segment = "als_block"
)

// Message represents a single conversation turn.
type Message struct {
	Role    Role    `json:"role"`
	Content string  `json:"content"`
	Segment Segment `json:"segment,omitempty"`
}

// SystemMessage creates a system message with the given text.
func SystemMessage(text string) Message {
	return Message{Role: System, Content: text}
}

// UserMessage creates a user message with the given text.
func UserMessage(text string) Message {
	return Message{Role: User, Content: text}
}

// AssistantMessage creates an assistant message with the given text.
func AssistantMessage(text string) Message {
	return Message{Role: Assistant, Content: text}
}

// LocationMessage creates the location-context message injected between the
// system preamble and the first user turn.
func LocationMessage(text string) Message {
	return Message{Role: System, Content: text, Segment: SegmentLocation}
}
