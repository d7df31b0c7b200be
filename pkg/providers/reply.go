package providers

import (
	"encoding/json"
	"strings"
)

// Reply is the structured assistant payload: an explanation plus an
// optional command to offer for execution.
type Reply struct {
	Explanation string `json:"explanation"`
	Command     string `json:"command"`
}

// ParseReply extracts a structured reply from raw model output. Returns
// false when the output is not the expected JSON shape; callers then show
// the raw text instead of failing the conversation.
func ParseReply(raw string) (Reply, bool) {
	text := stripCodeFences(strings.TrimSpace(raw))

	var reply Reply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return Reply{}, false
	}
	if reply.Explanation == "" && reply.Command == "" {
		return Reply{}, false
	}
	return reply, true
}

// stripCodeFences unwraps ```json ... ``` style fencing that models often
// add around JSON payloads.
func stripCodeFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
