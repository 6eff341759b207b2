package copilot

import "strings"

const (
	answerMarker  = "ANSWER:"
	actionsMarker = "NEXT ACTIONS:"
)

// DefaultNextActions is used when a completion has no NEXT ACTIONS section.
var DefaultNextActions = []string{
	"Review full clinical context",
	"Document assessment in patient record",
	"Follow up as clinically appropriate",
}

// ParseResponse splits a completion into its answer and next actions. It
// accepts any input.
func ParseResponse(text string) ParsedAnswer {
	head, tail, found := strings.Cut(text, actionsMarker)
	if !found {
		return ParsedAnswer{
			Answer:      stripAnswerMarker(text),
			NextActions: append([]string(nil), DefaultNextActions...),
		}
	}

	actions := []string{}
	for _, line := range strings.Split(tail, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "•") {
			continue
		}
		if item := strings.TrimSpace(strings.TrimLeft(line, "-•")); item != "" {
			actions = append(actions, item)
		}
	}
	return ParsedAnswer{Answer: stripAnswerMarker(head), NextActions: actions}
}

// stripAnswerMarker drops everything up to and including the first ANSWER:.
func stripAnswerMarker(s string) string {
	if _, after, ok := strings.Cut(s, answerMarker); ok {
		s = after
	}
	return strings.TrimSpace(s)
}
