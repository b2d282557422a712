package takeoff

import (
	"encoding/json"
	"regexp"
)

var nameKeyRe = regexp.MustCompile(`"name"\s*:`)

// SalvageItems recovers item objects from a malformed or truncated response.
// It returns every balanced {...} object that decodes as JSON and has a
// top-level "name" key. Objects nested inside a recovered object are not
// returned separately. This is a heuristic and only runs after strict
// decoding has failed.
func SalvageItems(text string) []json.RawMessage {
	var out []json.RawMessage
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := matchBrace(text, i)
		if end < 0 {
			continue
		}
		candidate := text[i : end+1]
		if !nameKeyRe.MatchString(candidate) {
			// No name anywhere inside: nothing to recover from this span.
			i = end
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
			continue
		}
		if _, ok := obj["name"]; !ok {
			continue
		}
		out = append(out, json.RawMessage(candidate))
		i = end
	}
	return out
}

// matchBrace returns the index of the brace closing the one at start,
// honoring JSON string escapes, or -1 when the object never closes.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
