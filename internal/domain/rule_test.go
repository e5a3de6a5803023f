package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"catch-all matches root", "*", "/", true},
		{"catch-all matches anything", "*", "/api/v1/users", true},
		{"catch-all matches empty", "*", "", true},
		{"exact match", "/healthz", "/healthz", true},
		{"exact mismatch", "/healthz", "/readyz", false},
		{"prefix wildcard", "/api/*", "/api/v1/users", true},
		{"prefix wildcard needs the prefix", "/api/*", "/apix/v1", false},
		{"prefix wildcard matches empty tail", "/api/*", "/api/", true},
		{"prefix without trailing slash", "/api/*", "/api", false},
		{"suffix wildcard", "*.png", "/img/logo.png", true},
		{"suffix wildcard mismatch", "*.png", "/img/logo.jpg", false},
		{"inner wildcard", "/static/*/app.js", "/static/v2/app.js", true},
		{"question mark single char", "/v?", "/v1", true},
		{"question mark exactly one char", "/v?", "/v12", false},
		{"question mark needs a char", "/v?", "/v", false},
		{"mixed wildcards", "/u?er/*", "/user/42", true},
		{"double star", "/a/**", "/a/b/c", true},
		{"wildcard backtracking", "*/health", "/svc/one/health", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchPattern(tt.pattern, tt.path),
				"MatchPattern(%q, %q)", tt.pattern, tt.path)
		})
	}
}

func TestNewTableSortsByPriority(t *testing.T) {
	table, err := NewTable(
		Listener{Port: 80, Protocol: "HTTP", DefaultStatus: 404, DefaultBody: "404: page not found"},
		[]Rule{
			{Priority: 100, Pattern: "*", Pool: "web"},
			{Priority: 10, Pattern: "/api/*", Pool: "web"},
			{Priority: 50, Pattern: "/static/*", Pool: "web"},
		},
	)
	require.NoError(t, err)

	got := make([]int, 0, len(table.Rules))
	for _, r := range table.Rules {
		got = append(got, r.Priority)
	}
	assert.Equal(t, []int{10, 50, 100}, got)
}

func TestNewTableValidation(t *testing.T) {
	listener := Listener{Port: 80}

	tests := []struct {
		name  string
		rules []Rule
	}{
		{"empty pattern", []Rule{{Priority: 1, Pattern: "", Pool: "web"}}},
		{"empty pool", []Rule{{Priority: 1, Pattern: "*", Pool: ""}}},
		{"duplicate priority", []Rule{
			{Priority: 1, Pattern: "/a/*", Pool: "web"},
			{Priority: 1, Pattern: "/b/*", Pool: "web"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(listener, tt.rules)
			assert.Error(t, err)
		})
	}
}

func TestTableMatchFirstByPriority(t *testing.T) {
	table, err := NewTable(
		Listener{Port: 80},
		[]Rule{
			{Priority: 100, Pattern: "*", Pool: "web"},
			{Priority: 10, Pattern: "/api/*", Pool: "web"},
		},
	)
	require.NoError(t, err)

	rule, ok := table.Match("/api/v1/users")
	require.True(t, ok)
	assert.Equal(t, 10, rule.Priority, "the lowest matching priority must win")

	rule, ok = table.Match("/index.html")
	require.True(t, ok)
	assert.Equal(t, 100, rule.Priority)

	// Matching is read-only: the same path yields the same rule.
	again, ok := table.Match("/api/v1/users")
	require.True(t, ok)
	assert.Equal(t, rule.Pool, again.Pool)
	assert.Equal(t, 10, again.Priority)
}

func TestTableMatchNothing(t *testing.T) {
	table, err := NewTable(
		Listener{Port: 80, DefaultStatus: 404, DefaultBody: "404: page not found"},
		[]Rule{{Priority: 10, Pattern: "/api/*", Pool: "web"}},
	)
	require.NoError(t, err)

	_, ok := table.Match("/other")
	assert.False(t, ok, "unmatched paths fall through to the listener default")
}
