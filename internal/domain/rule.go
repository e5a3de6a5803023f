package domain

import (
	"fmt"
	"sort"
)

// Listener is the externally reachable entry point: one port, one
// protocol, and the fixed action returned when no rule matches.
type Listener struct {
	Port          int
	Protocol      string
	DefaultStatus int
	DefaultBody   string
}

// Rule maps a path pattern to a target pool. Rules are immutable between
// rules-file reloads; evaluation order is ascending priority, lower wins.
type Rule struct {
	Priority int
	Pattern  string
	Pool     string
}

// Table is a listener plus its routing rules, sorted and validated.
type Table struct {
	Listener Listener
	Rules    []Rule
}

// NewTable validates the rule set and returns it sorted by priority.
func NewTable(listener Listener, rules []Rule) (*Table, error) {
	seen := make(map[int]string, len(rules))
	for _, r := range rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule with priority %d has an empty pattern", r.Priority)
		}
		if r.Pool == "" {
			return nil, fmt.Errorf("rule %q has no target pool", r.Pattern)
		}
		if prev, dup := seen[r.Priority]; dup {
			return nil, fmt.Errorf("rules %q and %q share priority %d", prev, r.Pattern, r.Priority)
		}
		seen[r.Priority] = r.Pattern
	}

	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	return &Table{Listener: listener, Rules: sorted}, nil
}

// Match evaluates rules in ascending priority order and returns the first
// whose pattern matches the request path. The boolean is false when the
// listener's default action applies.
func (t *Table) Match(path string) (Rule, bool) {
	for _, r := range t.Rules {
		if MatchPattern(r.Pattern, path) {
			return r, true
		}
	}
	return Rule{}, false
}

// MatchPattern reports whether path matches pattern. Patterns support the
// load-balancer path-condition wildcards: '*' matches zero or more
// characters, '?' matches exactly one.
func MatchPattern(pattern, path string) bool {
	p, s := 0, 0
	star, backtrack := -1, 0

	for s < len(path) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == path[s]):
			p++
			s++
		case p < len(pattern) && pattern[p] == '*':
			star = p
			backtrack = s
			p++
		case star != -1:
			// Last '*' absorbs one more character and we retry.
			p = star + 1
			backtrack++
			s = backtrack
		default:
			return false
		}
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
