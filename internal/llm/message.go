package llm

// SenderType identifies who produced a chat message.
type SenderType int

const (
	SenderSystem SenderType = iota
	SenderUser
	SenderAssistant
)

// Role returns the wire-level role name for the sender.
func (s SenderType) Role() string {
	switch s {
	case SenderSystem:
		return "system"
	case SenderUser:
		return "user"
	case SenderAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// ChatMessage is a single conversation turn, independent of any backend.
// Values are never mutated after creation.
type ChatMessage struct {
	Text   string
	Sender SenderType
}
