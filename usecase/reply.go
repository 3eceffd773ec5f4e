package usecase

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/satriahrh/emotivoice/domain/entities"
)

var (
	leadingFence  = regexp.MustCompile("^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
)

// ParseReply extracts a StructuredReply from raw model output that may be
// wrapped in a markdown code fence. It returns nil unless the remainder is a
// single JSON object with a string "text" field.
func ParseReply(raw string) *entities.StructuredReply {
	cleaned := leadingFence.ReplaceAllString(strings.TrimSpace(raw), "")
	cleaned = strings.TrimSpace(trailingFence.ReplaceAllString(cleaned, ""))
	if cleaned == "" {
		return nil
	}

	var decoded struct {
		Text   *string `json:"text"`
		Motion *string `json:"motion"`
	}
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil
	}
	if decoded.Text == nil {
		return nil
	}

	reply := &entities.StructuredReply{Text: *decoded.Text}
	if decoded.Motion != nil {
		reply.Motion = *decoded.Motion
	}
	return reply
}
