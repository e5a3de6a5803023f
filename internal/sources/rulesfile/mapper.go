package rulesfile

import (
	"fmt"

	"github.com/steward-lb/steward/internal/domain"
)

// Fallbacks applied when the rules file leaves fields empty.
const (
	DefaultProtocol = "HTTP"
	DefaultStatus   = 404
	DefaultBody     = "404: page not found"
)

// Mapper converts the raw file schema into a validated routing table.
type Mapper struct {
	fallbackPort int             // listener port used when the file omits one
	knownPools   map[string]bool // pool names rules may refer to
}

// NewMapper creates a mapper. knownPools lists the pools the capacity
// manager actually runs; rules pointing anywhere else are rejected.
func NewMapper(fallbackPort int, knownPools []string) *Mapper {
	known := make(map[string]bool, len(knownPools))
	for _, p := range knownPools {
		known[p] = true
	}
	return &Mapper{
		fallbackPort: fallbackPort,
		knownPools:   known,
	}
}

// Map validates the schema and builds the routing table.
func (m *Mapper) Map(schema *FileSchema) (*domain.Table, error) {
	listener := domain.Listener{
		Port:          schema.Listener.Port,
		Protocol:      schema.Listener.Protocol,
		DefaultStatus: schema.Listener.Default.Status,
		DefaultBody:   schema.Listener.Default.Body,
	}
	if listener.Port == 0 {
		listener.Port = m.fallbackPort
	}
	if listener.Protocol == "" {
		listener.Protocol = DefaultProtocol
	}
	if listener.DefaultStatus == 0 {
		listener.DefaultStatus = DefaultStatus
	}
	if listener.DefaultBody == "" {
		listener.DefaultBody = DefaultBody
	}

	rules := make([]domain.Rule, 0, len(schema.Rules))
	for _, r := range schema.Rules {
		if !m.knownPools[r.Pool] {
			return nil, fmt.Errorf("rule %q targets unknown pool %q", r.Pattern, r.Pool)
		}
		rules = append(rules, domain.Rule{
			Priority: r.Priority,
			Pattern:  r.Pattern,
			Pool:     r.Pool,
		})
	}

	table, err := domain.NewTable(listener, rules)
	if err != nil {
		return nil, fmt.Errorf("invalid rules file: %w", err)
	}
	return table, nil
}
