package usecase

import (
	"encoding/json"
	"testing"

	"github.com/satriahrh/emotivoice/domain/entities"
)

func TestParseReply_RoundTrip(t *testing.T) {
	records := []entities.StructuredReply{
		{Text: "hi", Motion: "wave"},
		{Text: "你好，我是八重神子", Motion: "idle"},
		{Text: "line one\nline \"two\"", Motion: ""},
	}

	wrappers := map[string]func(string) string{
		"raw":          func(s string) string { return s },
		"fenced":       func(s string) string { return "```\n" + s + "\n```" },
		"json fenced":  func(s string) string { return "```json\n" + s + "\n```" },
		"padded fence": func(s string) string { return "  \n```json   " + s + "```  \n" },
	}

	for name, wrap := range wrappers {
		for _, want := range records {
			encoded, err := json.Marshal(want)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			got := ParseReply(wrap(string(encoded)))
			if got == nil {
				t.Fatalf("%s: expected reply for %q, got nil", name, encoded)
			}
			if *got != want {
				t.Errorf("%s: expected %+v, got %+v", name, want, *got)
			}
		}
	}
}

func TestParseReply_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"fence only", "```json\n```"},
		{"plain text", "Sorry, I cannot help with that."},
		{"truncated", `{"text":"hi"`},
		{"array", `[{"text":"hi"}]`},
		{"null", "null"},
		{"missing text", `{"motion":"wave"}`},
		{"text not string", `{"text":3,"motion":"wave"}`},
		{"motion not string", `{"text":"hi","motion":["wave"]}`},
		{"trailing garbage", `{"text":"hi"} and more`},
		{"two objects", `{"text":"a"}{"text":"b"}`},
		{"error sentinel", "Error: Exception"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				if got := ParseReply(tt.raw); got != nil {
					t.Fatalf("expected nil for %q, got %+v", tt.raw, *got)
				}
			}
		})
	}
}

func TestParseReply_ExtraFieldsIgnored(t *testing.T) {
	got := ParseReply(`{"text":"hi","motion":"wave","emotion":"happy"}`)
	if got == nil || got.Text != "hi" || got.Motion != "wave" {
		t.Errorf("unexpected reply %+v", got)
	}
}
