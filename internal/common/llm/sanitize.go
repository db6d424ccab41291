package llm

import (
	"regexp"
	"strings"
)

var fencedObject = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// Sanitize pulls a JSON object out of a chat completion. In order it returns:
// the object inside the first ```json fence, the span from the first '{' to
// the last '}', or the text unchanged.
func Sanitize(text string) string {
	if m := fencedObject.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return text[start : end+1]
	}

	return text
}
