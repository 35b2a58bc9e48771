package references

import (
	"strings"
	"unicode"
)

func lower(s string) string {
	return strings.ToLower(s)
}

func isIdent(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// StripCodeComments removes line and block comments from Apex or JavaScript
// source, leaving single-quoted string literals intact
func StripCodeComments(code string) string {
	var b strings.Builder
	b.Grow(len(code))

	const (
		normal = iota
		literal
		line
		block
	)
	state := normal
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch state {
		case normal:
			switch {
			case c == '\'':
				state = literal
				b.WriteByte(c)
			case c == '/' && i+1 < len(code) && code[i+1] == '/':
				state = line
				i++
			case c == '/' && i+1 < len(code) && code[i+1] == '*':
				state = block
				i++
			default:
				b.WriteByte(c)
			}
		case literal:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(code) {
				i++
				b.WriteByte(code[i])
			} else if c == '\'' {
				state = normal
			}
		case line:
			if c == '\n' {
				state = normal
				b.WriteByte(c)
			}
		case block:
			if c == '*' && i+1 < len(code) && code[i+1] == '/' {
				state = normal
				i++
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}

// StripMarkupComments removes <!-- --> comments from page markup
func StripMarkupComments(markup string) string {
	var b strings.Builder
	for {
		start := strings.Index(markup, "<!--")
		if start == -1 {
			b.WriteString(markup)
			return b.String()
		}
		b.WriteString(markup[:start])
		end := strings.Index(markup[start+4:], "-->")
		if end == -1 {
			return b.String()
		}
		markup = markup[start+4+end+3:]
	}
}

// Normalize lowercases code and removes all whitespace so formatting never hides
// a reference
func Normalize(code string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, code)
}

// ReferencesField reports whether normalized code refers to object.field, either
// qualified or as a member access / selected column in code that also names the
// object
func ReferencesField(normalized, object, field string) bool {
	if field == "" {
		return false
	}
	if object != "" && strings.Contains(normalized, lower(object+"."+field)) {
		return true
	}
	if object != "" && !strings.Contains(normalized, lower(object)) {
		return false
	}

	f := lower(field)
	for from := 0; from < len(normalized); {
		idx := strings.Index(normalized[from:], f)
		if idx == -1 {
			return false
		}
		idx += from
		end := idx + len(f)
		from = idx + 1

		before := idx == 0 || strings.ContainsRune(".,([{'\"!:", rune(normalized[idx-1])) ||
			strings.HasSuffix(normalized[:idx], "select")
		after := end == len(normalized) || !isIdent(normalized[end]) ||
			strings.HasPrefix(normalized[end:], "from")
		if before && after {
			return true
		}
	}
	return false
}

// FormulaReferences reports whether a formula on object refers to field, either
// qualified or as a bare identifier
func FormulaReferences(formula, object, field string) bool {
	if field == "" {
		return false
	}
	formula = lower(formula)
	if object != "" && strings.Contains(formula, lower(object+"."+field)) {
		return true
	}

	f := lower(field)
	for from := 0; from < len(formula); {
		idx := strings.Index(formula[from:], f)
		if idx == -1 {
			return false
		}
		idx += from
		end := idx + len(f)
		from = idx + 1

		if idx > 0 && (isIdent(formula[idx-1]) || formula[idx-1] == '.' || formula[idx-1] == '$') {
			continue
		}
		if end < len(formula) && isIdent(formula[end]) {
			continue
		}
		return true
	}
	return false
}

// ContainsStringLiteral reports whether code holds value as a quoted literal,
// ignoring case
func ContainsStringLiteral(code, value string) bool {
	if value == "" {
		return false
	}
	return strings.Contains(lower(code), "'"+lower(value)+"'")
}

// walk visits every key/value pair of a decoded metadata body depth first. It
// stops as soon as fn returns true and reports whether it did.
func walk(v any, fn func(key string, val any) bool) bool {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if fn(k, child) {
				return true
			}
			if walk(child, fn) {
				return true
			}
		}
	case []any:
		for _, child := range node {
			if walk(child, fn) {
				return true
			}
		}
	}
	return false
}

// stringValue returns v when it is a string
func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
