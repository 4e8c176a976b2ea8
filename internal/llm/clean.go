package llm

import (
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?is)^```(?:json)?\\s*\n?(.*?)\n?```$")

// CleanJSON strips markdown code fences and repairs trailing bracket
// imbalance in model output. This is the cheap, local half of structured
// output repair; anything it cannot fix goes back to the model.
func CleanJSON(text string) string {
	cleaned := strings.TrimSpace(text)

	if m := fencePattern.FindStringSubmatch(cleaned); m != nil {
		cleaned = strings.TrimSpace(m[1])
	}

	// Close brackets the model left open at the end of truncated output.
	// Counts ignore string contents, so this only runs when imbalanced.
	openBrackets := bracketBalance(cleaned, '[', ']')
	openBraces := bracketBalance(cleaned, '{', '}')
	if openBraces > 0 {
		cleaned += strings.Repeat("}", openBraces)
	}
	if openBrackets > 0 {
		cleaned += strings.Repeat("]", openBrackets)
	}

	return cleaned
}

// bracketBalance counts unclosed open brackets outside JSON strings.
func bracketBalance(s string, open, close rune) int {
	depth := 0
	inString := false
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inString:
			escaped = true
		case r == '"':
			inString = !inString
		case !inString && r == open:
			depth++
		case !inString && r == close:
			depth--
		}
	}
	if depth < 0 {
		return 0
	}
	return depth
}
