package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedJSONRe    = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\r?\\n?(.*?)\\s*```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([A-Za-z_]\w*)(\s*:)`)
	controlCharRe   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

// StripCodeFence removes one layer of Markdown code fencing (```json ... ```).
// Input without a fence is returned trimmed.
func StripCodeFence(input string) string {
	s := strings.TrimSpace(input)
	if matches := fencedJSONRe.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return s
}

// ParseAIJSON extracts and parses JSON from model output that may contain:
// - Pure JSON
// - JSON wrapped in markdown code blocks (```json ... ```)
// - JSON with surrounding text
// - Trailing commas or unquoted keys
func ParseAIJSON(input string, target interface{}) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("empty input")
	}

	// Try direct parsing first (most common case)
	if err := json.Unmarshal([]byte(input), target); err == nil {
		return nil
	}

	unfenced := StripCodeFence(input)
	if unfenced != strings.TrimSpace(input) {
		if err := json.Unmarshal([]byte(unfenced), target); err == nil {
			return nil
		}
	}

	for _, candidate := range extractJSONCandidates(unfenced) {
		if err := decodeLenient(candidate, target); err == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to parse JSON from input: %s", TruncateString(input, 100))
}

// ParseAIJSONArray parses model output whose top level must be a JSON array
func ParseAIJSONArray(input string) ([]interface{}, error) {
	var result []interface{}
	if err := ParseAIJSON(input, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("top-level JSON value is not an array")
	}
	return result, nil
}

// ParseAIJSONObject parses model output whose top level must be a JSON object
func ParseAIJSONObject(input string) (map[string]interface{}, error) {
	var result map[string]interface{}
	if err := ParseAIJSON(input, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("top-level JSON value is not an object")
	}
	return result, nil
}

// ParseAIJSONArrays returns every JSON array found in model output, in order of
// appearance. Answer services that cite sources put markers like "[1]" in the
// prose, so callers pick the first array they can use.
func ParseAIJSONArrays(input string) ([][]interface{}, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("empty input")
	}

	unfenced := StripCodeFence(input)
	var whole []interface{}
	if err := json.Unmarshal([]byte(unfenced), &whole); err == nil && whole != nil {
		return [][]interface{}{whole}, nil
	}

	var arrays [][]interface{}
	for _, candidate := range extractJSONCandidates(unfenced) {
		var arr []interface{}
		if err := decodeLenient(candidate, &arr); err == nil && arr != nil {
			arrays = append(arrays, arr)
		}
	}
	if len(arrays) == 0 {
		return nil, fmt.Errorf("no JSON array in input: %s", TruncateString(input, 100))
	}
	return arrays, nil
}

// extractJSONCandidates returns each balanced top-level object or array in the text.
// Containers nested inside a candidate are not returned separately.
func extractJSONCandidates(input string) []string {
	var candidates []string
	for i := 0; i < len(input); {
		pos := strings.IndexAny(input[i:], "[{")
		if pos < 0 {
			break
		}
		pos += i

		open, close := '[', ']'
		if input[pos] == '{' {
			open, close = '{', '}'
		}
		extracted := extractBalancedBraces(input[pos:], open, close)
		if extracted == "" {
			i = pos + 1
			continue
		}
		candidates = append(candidates, extracted)
		i = pos + len(extracted)
	}
	return candidates
}

func decodeLenient(candidate string, target interface{}) error {
	err := json.Unmarshal([]byte(candidate), target)
	if err == nil {
		return nil
	}
	if cleaned := cleanAndFixJSON(candidate); cleaned != "" && cleaned != candidate {
		return json.Unmarshal([]byte(cleaned), target)
	}
	return err
}

// extractBalancedBraces extracts content with balanced braces
func extractBalancedBraces(input string, open, close rune) string {
	if len(input) == 0 {
		return ""
	}

	depth := 0
	inString := false
	escape := false
	start := 0

	for i, ch := range input {
		if escape {
			escape = false
			continue
		}
		if ch == '\\' {
			escape = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if ch == open {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == close {
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}

	return ""
}

// cleanAndFixJSON attempts to fix common JSON formatting issues
func cleanAndFixJSON(input string) string {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "\ufeff")
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = unquotedKeyRe.ReplaceAllString(s, `$1"$2"$3`)
	return controlCharRe.ReplaceAllString(s, "")
}

// TruncateString truncates a string to maxLen bytes
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
