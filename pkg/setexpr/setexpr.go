/*
Package setexpr parses cron-like, comma-separated set expressions into
concrete integer sets within a declared domain.

It supports the same token grammar as the schedule library it was grounded
on: names (possibly abbreviated), numeric values, the first/last wildcards
(^ and $), the all-items wildcard (* or ?), ranges (a-b, with optional
wraparound), and step increments (a/n, a-b/n). Token matching is
case-insensitive and names are truncated to a configured number of
significant characters before comparison, so "mon" and "mond" both resolve
to the same weekday when the domain truncates to 3 characters.

A Builder is immutable after construction and side-effect free: Build never
mutates the Builder and two calls with the same input always return the
same set.
*/
package setexpr

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	wildcardAll   = "*?"
	wildcardFirst = "^"
	wildcardLast  = "$"
	incrementChar = "/"
	rangeChar     = "-"
)

// Set is an integer set built by a Builder.
type Set map[int]struct{}

// Contains reports whether v is a member of the set.
func (s Set) Contains(v int) bool {
	_, ok := s[v]
	return ok
}

// Builder parses set expressions within one declared domain: either a list
// of names (weekdays, months) or a plain numeric [min, max] range
// (monthdays).
type Builder struct {
	names        []string // comparison names: lowercased, truncated
	displayNames []string
	values       []string // numeric-string representation of each name's value
	offset       int
	min          int
	max          int
	wrap         bool
	sigChars     int
}

// NamesOption configures a name-based Builder.
type NamesOption func(*Builder)

// WithOffset sets the integer value of the first name (default 0).
func WithOffset(offset int) NamesOption {
	return func(b *Builder) { b.offset = offset }
}

// WithSignificantChars truncates names to this many characters before
// comparison (0 means "use full name").
func WithSignificantChars(n int) NamesOption {
	return func(b *Builder) { b.sigChars = n }
}

// NewNamesBuilder builds a Builder whose domain is the given ordered list
// of names, e.g. weekday or month names.
func NewNamesBuilder(names []string, opts ...NamesOption) *Builder {
	b := &Builder{displayNames: append([]string(nil), names...)}
	for _, opt := range opts {
		opt(b)
	}
	b.min = b.offset
	b.max = len(names) - 1 + b.offset

	b.names = make([]string, len(names))
	b.values = make([]string, len(names))
	for i, n := range names {
		name := strings.ToLower(n)
		if b.sigChars > 0 && len(name) > b.sigChars {
			name = name[:b.sigChars]
		}
		b.names[i] = name
		b.values[i] = strconv.Itoa(i + b.offset)
	}
	return b
}

// RangeOption configures a numeric-range Builder.
type RangeOption func(*Builder)

// WithWrap allows ranges (a-b) where a > b to wrap around the domain.
func WithWrap() RangeOption {
	return func(b *Builder) { b.wrap = true }
}

// NewRangeBuilder builds a Builder whose domain is the closed interval
// [min, max] of plain integers, e.g. monthdays 1-31.
func NewRangeBuilder(min, max int, opts ...RangeOption) *Builder {
	b := &Builder{min: min, max: max, offset: min}
	for _, opt := range opts {
		opt(b)
	}
	n := max - min + 1
	b.names = make([]string, n)
	b.values = make([]string, n)
	for i := 0; i < n; i++ {
		s := strconv.Itoa(min + i)
		b.names[i] = s
		b.values[i] = s
	}
	return b
}

// First returns the lowest possible value in the domain.
func (b *Builder) First() int { return b.min }

// Last returns the highest possible value in the domain.
func (b *Builder) Last() int { return b.max }

// All returns the full domain as a set.
func (b *Builder) All() Set {
	s := make(Set, len(b.names))
	for i := range b.names {
		s[i+b.offset] = struct{}{}
	}
	return s
}

// Build parses a comma-separated set expression into a Set. An unknown
// token, an out-of-domain range endpoint, or a non-positive step rejects
// the whole expression.
func (b *Builder) Build(expr string) (Set, error) {
	result := make(Set)
	for _, tok := range strings.Split(expr, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		values, err := b.parseToken(strings.ToLower(tok))
		if err != nil {
			return nil, fmt.Errorf("setexpr: %q: %w", tok, err)
		}
		for _, v := range values {
			result[v] = struct{}{}
		}
	}
	return result, nil
}

func (b *Builder) parseToken(tok string) ([]int, error) {
	if len(tok) == 1 && strings.ContainsRune(wildcardAll, rune(tok[0])) {
		all := make([]int, 0, len(b.names))
		for i := range b.names {
			all = append(all, i+b.offset)
		}
		return all, nil
	}

	base, step, hasStep, err := splitIncrement(tok)
	if err != nil {
		return nil, err
	}

	start, end, isRange := splitRange(base)
	if isRange {
		startVal, ok := b.valueOf(start)
		if !ok {
			return nil, fmt.Errorf("unknown range start %q", start)
		}
		endVal, ok := b.valueOf(end)
		if !ok {
			return nil, fmt.Errorf("unknown range end %q", end)
		}
		return b.expandRange(startVal, endVal, step)
	}

	val, ok := b.valueOf(base)
	if !ok {
		return nil, fmt.Errorf("unknown value %q", base)
	}
	if hasStep {
		// a single value with an increment (a/n) steps from that value
		// up to the domain maximum.
		return b.expandRange(val, b.max, step)
	}
	return []int{val}, nil
}

func splitIncrement(tok string) (base string, step int, hasStep bool, err error) {
	i := strings.Index(tok, incrementChar)
	if i < 0 {
		return tok, 1, false, nil
	}
	stepStr := tok[i+1:]
	n, convErr := strconv.Atoi(stepStr)
	if convErr != nil {
		return "", 0, false, fmt.Errorf("increment value must be an integer (%q)", stepStr)
	}
	if n <= 0 {
		return "", 0, false, fmt.Errorf("increment value must be > 0 (%d)", n)
	}
	return tok[:i], n, true, nil
}

func splitRange(tok string) (start, end string, ok bool) {
	i := strings.Index(tok, rangeChar)
	if i <= 0 || i == len(tok)-1 {
		return "", "", false
	}
	return tok[:i], tok[i+1:], true
}

func (b *Builder) valueOf(tok string) (int, bool) {
	if len(tok) == 1 {
		switch tok {
		case wildcardFirst:
			return b.min, true
		case wildcardLast:
			return b.max, true
		}
	}
	if b.sigChars > 0 && len(tok) > b.sigChars {
		tok = tok[:b.sigChars]
	}
	for i, name := range b.names {
		if name == tok {
			return i + b.offset, true
		}
	}
	// numeric fallback (leading zeros stripped, as the reference parser does)
	trimmed := strings.TrimLeft(tok, "0")
	if trimmed == "" {
		trimmed = "0"
	}
	for i, v := range b.values {
		if v == trimmed {
			return i + b.offset, true
		}
	}
	return 0, false
}

func (b *Builder) expandRange(start, end, step int) ([]int, error) {
	if !b.wrap && start > end {
		return nil, fmt.Errorf("range start (%d) must be <= end (%d)", start, end)
	}
	domainSize := len(b.names)
	result := []int{start}
	current := start
	countdown := step
	for current != end {
		current++
		countdown--
		current = ((current-b.offset)%domainSize + domainSize) % domainSize + b.offset
		if countdown == 0 {
			result = append(result, current)
			countdown = step
		}
	}
	return result, nil
}
