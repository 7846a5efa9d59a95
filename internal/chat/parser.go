package chat

import (
	"regexp"
	"strings"
)

// Reply is a cleaned model answer. Reaction is empty when the model did
// not tag its answer, otherwise it is always bracketed, e.g. "[HAPPY]".
type Reply struct {
	Text     string `json:"response"`
	Reaction string `json:"reaction,omitempty"`
}

func (r Reply) HasReaction() bool {
	return r.Reaction != ""
}

var (
	// greedy prefix so the final bracket group is the reaction
	trailingBracket = regexp.MustCompile(`(?s)^(.*)\[([^\[\]]*)\]\s*$`)
	hashtag         = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	quotes          = strings.NewReplacer(`"`, "", "“", "", "”", "", "„", "", "‟", "")
	lineBreaks      = regexp.MustCompile(`[\r\n]+`)
	spaceRuns       = regexp.MustCompile(`\s{2,}`)
)

// ParseResponse splits raw model output into reply text and reaction. A
// trailing [tag] wins over a #tag anywhere in the text.
func ParseResponse(raw string) Reply {
	if raw == "" {
		return Reply{}
	}

	if m := trailingBracket.FindStringSubmatch(raw); m != nil {
		return Reply{
			Text:     cleanReply(strings.TrimSpace(m[1])),
			Reaction: "[" + strings.TrimSpace(m[2]) + "]",
		}
	}

	if m := hashtag.FindStringSubmatch(raw); m != nil {
		text := strings.Replace(raw, m[0], "", 1)
		return Reply{
			Text:     cleanReply(strings.TrimSpace(text)),
			Reaction: "[" + m[1] + "]",
		}
	}

	return Reply{Text: cleanReply(raw)}
}

func cleanReply(s string) string {
	s = quotes.Replace(s)
	s = lineBreaks.ReplaceAllString(s, " ")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
