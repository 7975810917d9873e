package analysis

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	jsonFenceRe = regexp.MustCompile("(?is)```\\s*json[^\\n]*\\n(.*?)```")
	anyFenceRe  = regexp.MustCompile("(?s)```[^\\n]*\\n(.*?)```")

	errNotObject = errors.New("top-level value is not a JSON object")
	errNoObject  = errors.New("no JSON object found")
)

// Decode recovers a JSON object from model output. It tries, in order: a
// strict parse, a repair pass over the whole text, and extraction of an
// embedded object (```json fence, any fence, then the first brace-balanced
// span) which is itself parsed strictly and then repaired. The whole-text
// repair only runs when the text opens with '{'; prose-led replies go
// straight to extraction.
func Decode(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, newDecodeError(raw, errors.New("empty response"))
	}
	if obj, err := parseObject(trimmed); err == nil {
		return obj, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		if obj, err := repairAndParse(trimmed); err == nil {
			return obj, nil
		}
	}
	candidate, ok := extractObject(trimmed)
	if !ok {
		return nil, newDecodeError(raw, errNoObject)
	}
	if obj, err := parseObject(candidate); err == nil {
		return obj, nil
	}
	obj, err := repairAndParse(candidate)
	if err != nil {
		return nil, newDecodeError(raw, err)
	}
	return obj, nil
}

func parseObject(s string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

func repairAndParse(s string) (map[string]any, error) {
	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return nil, err
	}
	return parseObject(repaired)
}

// extractObject locates the JSON object most likely intended by the model.
func extractObject(s string) (string, bool) {
	if m := jsonFenceRe.FindStringSubmatch(s); m != nil {
		body := strings.TrimSpace(m[1])
		if strings.HasPrefix(body, "{") {
			return body, true
		}
		if obj, ok := balancedObject(body); ok {
			return obj, true
		}
	}
	for _, m := range anyFenceRe.FindAllStringSubmatch(s, -1) {
		if obj, ok := balancedObject(m[1]); ok {
			return obj, true
		}
	}
	return balancedObject(s)
}

// balancedObject returns the substring from the first '{' to its matching
// '}'. Braces inside string literals are ignored. An object that never closes
// is returned through to the end of s so the repair pass can finish it.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
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
				return s[start : i+1], true
			}
		}
	}
	return strings.TrimSpace(s[start:]), true
}
