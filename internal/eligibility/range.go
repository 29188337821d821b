package eligibility

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedRange is returned for range expressions that match no form of
// the grammar or carry non-numeric bounds.
var ErrMalformedRange = errors.New("malformed range expression")

// RangeKind identifies the parsed form of a range expression.
type RangeKind int

const (
	Unconstrained RangeKind = iota
	LessThan
	LessEqual
	GreaterThan
	GreaterEqual
	Between
	Equal
)

func (k RangeKind) String() string {
	switch k {
	case Unconstrained:
		return "unconstrained"
	case LessThan:
		return "<"
	case LessEqual:
		return "<="
	case GreaterThan:
		return ">"
	case GreaterEqual:
		return ">="
	case Between:
		return "between"
	case Equal:
		return "="
	default:
		return "unknown"
	}
}

// Range is a parsed predicate over a scalar. Lo is the only bound for the
// single-bound kinds; Hi is used by Between.
type Range struct {
	Kind RangeKind
	Lo   float64
	Hi   float64
}

// Holds reports whether v satisfies the range. Bounds of <=, >= and Between
// are inclusive; < and > are exclusive.
func (r Range) Holds(v float64) bool {
	switch r.Kind {
	case Unconstrained:
		return true
	case LessThan:
		return v < r.Lo
	case LessEqual:
		return v <= r.Lo
	case GreaterThan:
		return v > r.Lo
	case GreaterEqual:
		return v >= r.Lo
	case Between:
		return r.Lo <= v && v <= r.Hi
	case Equal:
		return v == r.Lo
	default:
		return false
	}
}

func (r Range) String() string {
	switch r.Kind {
	case Unconstrained:
		return "any"
	case Between:
		return fmt.Sprintf("%s-%s", formatBound(r.Lo), formatBound(r.Hi))
	default:
		return r.Kind.String() + formatBound(r.Lo)
	}
}

// ParseRange parses a scheme range field such as "18-65", "<=20000",
// "Age>=18" or "18<=Age<=65". The first matching form wins, in this order:
// double "<=", single "<=", single ">=", "<", ">", hyphen pair, single number.
func ParseRange(raw string) (Range, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "any") || strings.EqualFold(trimmed, "anyone") {
		return Range{Kind: Unconstrained}, nil
	}

	expr := strings.Join(strings.Fields(strings.ToLower(trimmed)), "")
	expr = strings.ReplaceAll(expr, "age", "")
	expr = strings.ReplaceAll(expr, "income", "")

	switch n := strings.Count(expr, "<="); {
	case n == 2:
		parts := strings.Split(expr, "<=")
		return between(raw, parts[0], parts[2])
	case n == 1:
		return single(raw, LessEqual, strings.Replace(expr, "<=", "", 1))
	case n > 2:
		return Range{}, malformed(raw)
	}

	if strings.Count(expr, ">=") == 1 {
		return single(raw, GreaterEqual, strings.Replace(expr, ">=", "", 1))
	}

	if strings.Contains(expr, "=") {
		return Range{}, malformed(raw)
	}

	lt, gt := strings.Count(expr, "<"), strings.Count(expr, ">")
	switch {
	case lt == 1 && gt == 0:
		return single(raw, LessThan, strings.Replace(expr, "<", "", 1))
	case gt == 1 && lt == 0:
		return single(raw, GreaterThan, strings.Replace(expr, ">", "", 1))
	case lt > 0 || gt > 0:
		return Range{}, malformed(raw)
	}

	if strings.Count(expr, "-") == 1 {
		lo, hi, _ := strings.Cut(expr, "-")
		if lo != "" && hi != "" {
			return between(raw, lo, hi)
		}
	}

	return single(raw, Equal, expr)
}

func single(raw string, kind RangeKind, text string) (Range, error) {
	x, err := parseBound(text)
	if err != nil {
		return Range{}, fmt.Errorf("%w %q: %v", ErrMalformedRange, raw, err)
	}
	return Range{Kind: kind, Lo: x}, nil
}

func between(raw, loText, hiText string) (Range, error) {
	lo, err := parseBound(loText)
	if err != nil {
		return Range{}, fmt.Errorf("%w %q: lower bound: %v", ErrMalformedRange, raw, err)
	}
	hi, err := parseBound(hiText)
	if err != nil {
		return Range{}, fmt.Errorf("%w %q: upper bound: %v", ErrMalformedRange, raw, err)
	}
	return Range{Kind: Between, Lo: lo, Hi: hi}, nil
}

// parseBound accepts finite decimal numbers only.
func parseBound(text string) (float64, error) {
	if text == "" {
		return 0, errors.New("empty bound")
	}
	x, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("bound %q is not a number", text)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("bound %q is not finite", text)
	}
	return x, nil
}

func malformed(raw string) error {
	return fmt.Errorf("%w %q", ErrMalformedRange, raw)
}

func formatBound(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
