package entities

// Role identifies the author of a conversation message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is a single turn sent to the language model
type ConversationMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Fragment is one piece of a streamed model reply.
// A fragment with a non-nil Err is the last one on its stream.
type Fragment struct {
	Text string
	Err  error
}

// Failed reports whether the fragment terminates the stream with an error
func (f Fragment) Failed() bool {
	return f.Err != nil
}
