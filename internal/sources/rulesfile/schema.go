package rulesfile

// FileSchema is the raw yaml structure of the rules file.
//
// Example:
//
//	listener:
//	  port: 80
//	  protocol: HTTP
//	  default:
//	    status: 404
//	    body: "404: page not found"
//	rules:
//	  - priority: 100
//	    pattern: "*"
//	    pool: web
type FileSchema struct {
	Listener ListenerSchema `yaml:"listener"`
	Rules    []RuleSchema   `yaml:"rules"`
}

// ListenerSchema is the raw listener block.
type ListenerSchema struct {
	Port     int           `yaml:"port"`
	Protocol string        `yaml:"protocol"`
	Default  DefaultSchema `yaml:"default"`
}

// DefaultSchema is the fixed response returned when no rule matches.
type DefaultSchema struct {
	Status int    `yaml:"status"`
	Body   string `yaml:"body"`
}

// RuleSchema is one raw routing rule.
type RuleSchema struct {
	Priority int    `yaml:"priority"`
	Pattern  string `yaml:"pattern"`
	Pool     string `yaml:"pool"`
}
