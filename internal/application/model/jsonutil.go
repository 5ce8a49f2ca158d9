package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSON reads the JSON object a model put in its reply into v. Attempts,
// in order: the whole reply; the first object of a fenced block (or, without a
// fence, from the first brace) decoded as one value so trailing prose is
// ignored; that object again with // comments and trailing commas removed.
func DecodeJSON(text string, v any) error {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal([]byte(trimmed), v) == nil {
		return nil
	}

	region := objectStart(text)
	if region == "" {
		return ErrNoJSON
	}
	err := json.NewDecoder(strings.NewReader(region)).Decode(v)
	if err == nil {
		return nil
	}
	if json.Unmarshal([]byte(relax(objectSpan(region))), v) == nil {
		return nil
	}
	return fmt.Errorf("decode model json: %w", err)
}

// ExtractJSON returns the text of the first balanced object in a reply, or ""
// when there is none. The text is returned as written.
func ExtractJSON(text string) string {
	region := objectStart(text)
	if region == "" {
		return ""
	}
	return objectSpan(region)
}

// objectStart returns text from the first '{', preferring a fenced block.
func objectStart(text string) string {
	if body, ok := fencedBody(text); ok {
		if i := strings.IndexByte(body, '{'); i >= 0 {
			return body[i:]
		}
	}
	if i := strings.IndexByte(text, '{'); i >= 0 {
		return text[i:]
	}
	return ""
}

func fencedBody(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	body := text[start+3:]
	// skip the language tag line
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.Contains(body[:nl], "{") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body, true
}

// objectSpan cuts s, which starts with '{', at the brace that balances it.
// Unbalanced input is returned whole.
func objectSpan(s string) string {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return s
}

// relax drops // comments and commas directly before a closing bracket.
// String literals are copied untouched.
func relax(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
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
		switch {
		case c == '"':
			inString = true
		case c == '/' && strings.HasPrefix(s[i:], "//"):
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				return b.String()
			}
			i += nl - 1
			continue
		case c == ',' && closesNext(s[i+1:]):
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func closesNext(rest string) bool {
	for {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if !strings.HasPrefix(rest, "//") {
			return rest != "" && (rest[0] == '}' || rest[0] == ']')
		}
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			return false
		}
		rest = rest[nl:]
	}
}
