package entities

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestHistoryMessage_PreservesUnknownFields(t *testing.T) {
	in := `{"sender":"Yae","message":"hi","timestamp":"10:00","motion":"wave","meta":{"a":[1,2]}}`

	var m HistoryMessage
	if err := json.Unmarshal([]byte(in), &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m.Sender != "Yae" || m.Message != "hi" || m.Timestamp != "10:00" {
		t.Errorf("unexpected message %+v", m)
	}
	if len(m.Extra) != 2 {
		t.Errorf("expected 2 extra fields, got %v", m.Extra)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var want, got map[string]any
	json.Unmarshal([]byte(in), &want)
	json.Unmarshal(out, &got)
	if len(got) != len(want) || got["motion"] != "wave" || got["sender"] != "Yae" {
		t.Errorf("round trip changed the message: %s", out)
	}
}

func TestEmptyHistoryRecord(t *testing.T) {
	out, err := json.Marshal(EmptyHistoryRecord())
	if err != nil {
		t.Fatal(err)
	}
	want := `{"version":"1.0","created":"","updated":"","messages":[]}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestHistoryRecord_Normalize(t *testing.T) {
	var r HistoryRecord
	r.Normalize()
	if r.Version != HistoryVersion || r.Messages == nil {
		t.Errorf("unexpected record %+v", r)
	}
}

func TestHistoryMessage_Conversation(t *testing.T) {
	tests := []struct {
		sender string
		want   Role
	}{
		{"You", RoleUser},
		{"user", RoleUser},
		{"Yae Miko", RoleAssistant},
		{"", RoleAssistant},
	}
	for _, tt := range tests {
		got := HistoryMessage{Sender: tt.sender, Message: "x"}.Conversation()
		if got.Role != tt.want || got.Content != "x" {
			t.Errorf("sender %q: got %+v", tt.sender, got)
		}
	}
}

func TestHistoryRecord_RoundTripKeepsMessageShape(t *testing.T) {
	tests := []string{
		`{"version":"1.0","created":"","updated":"","messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`,
		`{"version":"1.0","created":"c","updated":"u","messages":[{"sender":"You","message":"","timestamp":"10:00"}]}`,
		`{"version":"1.0","created":"","updated":"","messages":[{"message":"only text"}]}`,
	}

	for _, in := range tests {
		var r HistoryRecord
		if err := json.Unmarshal([]byte(in), &r); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		out, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}

		var want, got any
		json.Unmarshal([]byte(in), &want)
		json.Unmarshal(out, &got)
		if !reflect.DeepEqual(want, got) {
			t.Errorf("round trip changed the record:\n in: %s\nout: %s", in, out)
		}
	}
}

func TestHistoryMessage_ConversationFromRole(t *testing.T) {
	tests := []struct {
		in   string
		want ConversationMessage
	}{
		{`{"role":"user","content":"hi"}`, ConversationMessage{Role: RoleUser, Content: "hi"}},
		{`{"role":"assistant","content":"hello"}`, ConversationMessage{Role: RoleAssistant, Content: "hello"}},
		{`{"role":"assistant","sender":"You","message":"mine"}`, ConversationMessage{Role: RoleAssistant, Content: "mine"}},
	}

	for _, tt := range tests {
		var m HistoryMessage
		if err := json.Unmarshal([]byte(tt.in), &m); err != nil {
			t.Fatal(err)
		}
		if got := m.Conversation(); got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
