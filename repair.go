package toolstream

import (
	"strings"

	"github.com/tidwall/gjson"
)

// RepairJSON attempts a best-effort structural completion of truncated JSON
// text: it balances braces, brackets, and quotes using the same closer-stack
// technique the extractor uses for parsing, then validates the result. It
// never guesses semantic intent beyond structural closure.
//
// Returns the repaired text and true on success, or "" and false when the
// input is not a salvageable JSON prefix (wrong leading character, mismatched
// closers, or a completion that still fails validation).
func RepairJSON(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return "", false
	}
	if gjson.Valid(trimmed) {
		return trimmed, true
	}

	// Single pass tracking nesting and string state.
	stack := make([]byte, 0, 32)
	inString := false
	inEscape := false
	for _, r := range trimmed {
		switch {
		case inEscape:
			inEscape = false
		case inString:
			switch r {
			case '\\':
				inEscape = true
			case '"':
				inString = false
			}
		default:
			switch r {
			case '{':
				stack = append(stack, '}')
			case '[':
				stack = append(stack, ']')
			case '}', ']':
				if len(stack) == 0 || rune(stack[len(stack)-1]) != r {
					// Mismatched closer: structurally broken, not truncated.
					return "", false
				}
				stack = stack[:len(stack)-1]
			case '"':
				inString = true
			}
		}
	}

	repaired := trimmed
	if inEscape {
		// A dangling backslash cannot be completed meaningfully; drop it.
		repaired = repaired[:len(repaired)-1]
		inString = true
	}
	if inString {
		repaired += `"`
	}

	// Trim a dangling separator so the closers parse cleanly.
	repaired = strings.TrimRight(repaired, " \t\r\n")
	if strings.HasSuffix(repaired, ",") {
		repaired = repaired[:len(repaired)-1]
	}
	if strings.HasSuffix(repaired, ":") {
		repaired += " null"
	}

	for i := len(stack) - 1; i >= 0; i-- {
		repaired += string(stack[i])
	}

	if !gjson.Valid(repaired) {
		return "", false
	}
	return repaired, true
}
