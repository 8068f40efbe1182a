package judge

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/mauv0809/sketch-arena/internal/scoring"
)

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

type reply struct {
	Result    string `json:"result"`
	ResultFor string `json:"resultFor"`
	Reasoning any    `json:"reasoning"`
}

// parseReply extracts a reply from model text. It tries the fence-stripped
// text first and then the outermost {...} span.
func parseReply(text string) (reply, bool) {
	cleaned := strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(cleaned); m != nil {
		cleaned = m[1]
	}

	var r reply
	if err := json.Unmarshal([]byte(cleaned), &r); err == nil {
		return r, true
	}
	start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &r); err == nil {
			return r, true
		}
	}
	return reply{}, false
}

// outcome resolves the requester's outcome. A valid resultFor wins over result.
func (r reply) outcome() (scoring.Outcome, bool) {
	switch strings.ToLower(strings.TrimSpace(r.ResultFor)) {
	case "player":
		return scoring.Win, true
	case "opponent":
		return scoring.Loss, true
	case "draw":
		return scoring.Draw, true
	}
	switch strings.ToLower(strings.TrimSpace(r.Result)) {
	case "win":
		return scoring.Win, true
	case "loss", "lose":
		return scoring.Loss, true
	case "draw":
		return scoring.Draw, true
	}
	return "", false
}

func (r reply) reasoning() string {
	switch v := r.Reasoning.(type) {
	case string:
		return v
	case nil:
		return ""
	}
	b, _ := json.Marshal(r.Reasoning)
	return string(b)
}

// NormalizeReasoning collapses whitespace and caps the text at
// MaxReasoningRunes.
func NormalizeReasoning(s string) string {
	return truncateRunes(strings.Join(strings.Fields(s), " "), MaxReasoningRunes)
}
