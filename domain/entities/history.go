package entities

import (
	"encoding/json"
	"strings"
)

// HistoryVersion is the schema version written into new history records
const HistoryVersion = "1.0"

// HistoryRecord is the persisted transcript of a conversation
type HistoryRecord struct {
	Version  string           `json:"version"`
	Created  string           `json:"created"`
	Updated  string           `json:"updated"`
	Messages []HistoryMessage `json:"messages"`
}

// EmptyHistoryRecord returns the well-formed record served when nothing is stored
func EmptyHistoryRecord() *HistoryRecord {
	return &HistoryRecord{
		Version:  HistoryVersion,
		Messages: []HistoryMessage{},
	}
}

// Normalize fills the zero values a client may omit
func (r *HistoryRecord) Normalize() {
	if r.Version == "" {
		r.Version = HistoryVersion
	}
	if r.Messages == nil {
		r.Messages = []HistoryMessage{}
	}
}

// HistoryMessage is one transcript line as written by the chat client.
// Both the sender/message and the role/content shapes are accepted. Only
// the keys a client sent are written back, and fields the server does not
// know about are kept in Extra so records survive a save/load cycle unchanged.
type HistoryMessage struct {
	Sender    string
	Message   string
	Timestamp string
	Role      string
	Content   string
	Extra     map[string]json.RawMessage

	present map[string]bool
}

var historyMessageKeys = []string{"sender", "message", "timestamp", "role", "content"}

func (m *HistoryMessage) fields() []*string {
	return []*string{&m.Sender, &m.Message, &m.Timestamp, &m.Role, &m.Content}
}

// MarshalJSON implements json.Marshaler.
// A known key is written when it was decoded or is non-empty.
func (m HistoryMessage) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+len(historyMessageKeys))
	for k, v := range m.Extra {
		out[k] = v
	}
	for i, v := range m.fields() {
		key := historyMessageKeys[i]
		if *v != "" || m.present[key] {
			out[key] = *v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler
func (m *HistoryMessage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = HistoryMessage{}
	dst := m.fields()
	for i, key := range historyMessageKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst[i]); err != nil {
			return err
		}
		if m.present == nil {
			m.present = make(map[string]bool, len(historyMessageKeys))
		}
		m.present[key] = true
		delete(raw, key)
	}

	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}

// Conversation converts the transcript line into a model turn.
// An explicit role wins; otherwise the chat client labels the local speaker "You".
func (m HistoryMessage) Conversation() ConversationMessage {
	content := m.Message
	if content == "" {
		content = m.Content
	}

	switch strings.ToLower(m.Role) {
	case string(RoleUser):
		return ConversationMessage{Role: RoleUser, Content: content}
	case string(RoleAssistant):
		return ConversationMessage{Role: RoleAssistant, Content: content}
	}

	role := RoleAssistant
	switch strings.ToLower(m.Sender) {
	case "you", "user":
		role = RoleUser
	}
	return ConversationMessage{Role: role, Content: content}
}
