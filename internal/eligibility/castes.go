package eligibility

import (
	"strings"

	"github.com/spigell/scheme-matcher/internal/welfare"
)

// CasteSet is the normalized eligible_castes field of a scheme.
type CasteSet struct {
	universal bool
	members   map[string]struct{}
}

// ParseCasteSet normalizes the stored caste values. Each value is either a
// bare token or a list literal like "['OBC', 'SC']". Malformed literals add
// nothing, so a scheme whose castes cannot be read matches no one.
func ParseCasteSet(values []string) CasteSet {
	set := CasteSet{members: make(map[string]struct{})}
	for _, value := range values {
		for _, token := range tokens(value) {
			if isSentinel(token) {
				set.universal = true
				continue
			}
			set.members[token] = struct{}{}
		}
	}
	return set
}

// Contains reports whether caste is eligible. Comparison is case-insensitive.
func (c CasteSet) Contains(caste string) bool {
	if c.universal {
		return true
	}
	_, ok := c.members[normalize(caste)]
	return ok
}

func (c CasteSet) Universal() bool {
	return c.universal
}

func (c CasteSet) Empty() bool {
	return !c.universal && len(c.members) == 0
}

func tokens(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	if !strings.HasPrefix(trimmed, "[") {
		return []string{normalize(trimmed)}
	}

	items, ok := parseListLiteral(trimmed)
	if !ok {
		return nil
	}
	return items
}

// parseListLiteral reads a bracketed, comma-separated list of single- or
// double-quoted tokens. Anything else is rejected.
func parseListLiteral(s string) ([]string, bool) {
	if !strings.HasSuffix(s, "]") || len(s) < 2 {
		return nil, false
	}

	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, true
	}

	var out []string
	for _, part := range strings.Split(body, ",") {
		part = strings.TrimSpace(part)
		if len(part) < 2 {
			return nil, false
		}
		quote := part[0]
		if (quote != '\'' && quote != '"') || part[len(part)-1] != quote {
			return nil, false
		}
		inner := part[1 : len(part)-1]
		if strings.ContainsRune(inner, rune(quote)) {
			return nil, false
		}
		if token := normalize(inner); token != "" {
			out = append(out, token)
		}
	}
	return out, true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// isSentinel matches the universal spellings "Anyone" and "Any".
func isSentinel(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), welfare.Anyone) || strings.EqualFold(strings.TrimSpace(s), "any")
}
