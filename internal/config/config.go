package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Traffic Director (data plane)
	LBPort         int    // externally exposed port (ex: 80)
	PublicHostname string // optional, address advertised to clients (ex: "web.domain.ext")

	// Pool members
	ServerPort int // base port each pool member listens on (ex: 8080)
	MinSize    int // lower pool bound, never scale below
	MaxSize    int // upper pool bound, never scale above

	// Health checks
	ProbePath          string        // path probed on each member (ex: "/")
	ProbeInterval      time.Duration // time between probes per member
	ProbeTimeout       time.Duration // per-attempt timeout, exceeding it counts as a failure
	ProbeExpectStatus  int           // HTTP status counted as success
	HealthyThreshold   int           // consecutive successes before a member takes traffic
	UnhealthyThreshold int           // consecutive failures before a member is pulled

	// Reconciliation
	ReconcileInterval time.Duration // time between capacity reconcile passes

	// Routing rules
	RulesFile           string        // path to the rules.yaml file
	RulesReloadInterval time.Duration // interval to reload rules.yaml

	// Reaper
	ReaperInterval  time.Duration // interval to sweep terminated member records
	ReaperThreshold time.Duration // age after which terminated records are deleted

	// Admin plane
	AdminPort       string        // ex: ":9090"
	ShutdownTimeout time.Duration // ex: 5s
	AllowedHosts    []string      // optional, restrict admin access to specific Host headers
	AllowedCIDRS    []string      // optional, restrict admin access to specific IPs
	TrustProxy      bool          // true => trust X-Forwarded-For headers

	// Logging
	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Redis (optional; empty addr disables persistence)
	RedisAddr           string
	RedisUser           string
	RedisPassword       string
	RedisDB             int
	RedisDT             time.Duration // dial timeout
	RedisRT             time.Duration // read timeout
	RedisWT             time.Duration // write timeout
	RedisMaxWait        time.Duration // max wait between connect retries
	RedisPingTimeout    time.Duration // timeout for each ping attempt
	RedisPoolSize       int
	RedisConnectTimeout time.Duration // total time to retry connecting
	RedisRetryInterval  time.Duration // initial wait between retries, grows exponentially
	RedisWarnThreshold  int           // warn after this many attempts
}

func Load() *Config {
	cfg := &Config{
		// Data plane
		LBPort:         getenvInt("STEWARD_LB_PORT", 80),
		PublicHostname: getenv("STEWARD_PUBLIC_HOSTNAME", ""),

		// Pool
		ServerPort: getenvInt("STEWARD_SERVER_PORT", 8080),
		MinSize:    getenvInt("STEWARD_MIN_SIZE", 2),
		MaxSize:    getenvInt("STEWARD_MAX_SIZE", 10),

		// Health checks
		ProbePath:          getenv("STEWARD_PROBE_PATH", "/"),
		ProbeInterval:      mustDuration("STEWARD_PROBE_INTERVAL", 15*time.Second),
		ProbeTimeout:       mustDuration("STEWARD_PROBE_TIMEOUT", 3*time.Second),
		ProbeExpectStatus:  getenvInt("STEWARD_PROBE_EXPECT_STATUS", 200),
		HealthyThreshold:   getenvInt("STEWARD_HEALTHY_THRESHOLD", 2),
		UnhealthyThreshold: getenvInt("STEWARD_UNHEALTHY_THRESHOLD", 2),

		// Reconciliation
		ReconcileInterval: mustDuration("STEWARD_RECONCILE_INTERVAL", 10*time.Second),

		// Rules
		RulesFile:           getenv("STEWARD_RULES_FILE", "/app/rules.yaml"),
		RulesReloadInterval: mustDuration("STEWARD_RULES_RELOAD_INTERVAL", 5*time.Minute),

		// Reaper
		ReaperInterval:  mustDuration("STEWARD_REAPER_INTERVAL", time.Hour),
		ReaperThreshold: mustDuration("STEWARD_REAPER_THRESHOLD", 24*time.Hour),

		// Admin plane
		AdminPort:       getenv("STEWARD_ADMIN_PORT", ":9090"),
		ShutdownTimeout: mustDuration("STEWARD_SHUTDOWN_TIMEOUT", 5*time.Second),
		AllowedHosts:    splitAndTrim(getenv("STEWARD_ALLOWED_HOSTS", "")),
		AllowedCIDRS:    splitAndTrim(getenv("STEWARD_ALLOWED_CIDRS", "")),
		TrustProxy:      mustBool("STEWARD_TRUST_PROXY", false),

		// Logging
		LogLevel:  getenv("STEWARD_LOG_LEVEL", "info"),
		PrettyLog: mustBool("STEWARD_PRETTY_LOG", true),

		// Redis settings
		RedisAddr:           getenv("STEWARD_REDIS_ADDR", ""),
		RedisUser:           getenv("STEWARD_REDIS_USERNAME", "default"),
		RedisPassword:       getenv("STEWARD_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("STEWARD_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: invalid configuration: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// Validate rejects configurations the control loops cannot honor.
func (c *Config) Validate() error {
	if c.MinSize < 0 {
		return fmt.Errorf("STEWARD_MIN_SIZE must be >= 0, got %d", c.MinSize)
	}
	if c.MaxSize < c.MinSize {
		return fmt.Errorf("STEWARD_MAX_SIZE (%d) must be >= STEWARD_MIN_SIZE (%d)", c.MaxSize, c.MinSize)
	}
	if c.LBPort <= 0 || c.LBPort > 65535 {
		return fmt.Errorf("STEWARD_LB_PORT must be a valid port, got %d", c.LBPort)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("STEWARD_SERVER_PORT must be a valid port, got %d", c.ServerPort)
	}
	if c.HealthyThreshold < 1 {
		return fmt.Errorf("STEWARD_HEALTHY_THRESHOLD must be >= 1, got %d", c.HealthyThreshold)
	}
	if c.UnhealthyThreshold < 1 {
		return fmt.Errorf("STEWARD_UNHEALTHY_THRESHOLD must be >= 1, got %d", c.UnhealthyThreshold)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("STEWARD_PROBE_INTERVAL must be > 0, got %v", c.ProbeInterval)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("STEWARD_PROBE_TIMEOUT must be > 0, got %v", c.ProbeTimeout)
	}
	return nil
}

// DNSName returns the address clients use to reach the Traffic Director.
// This is the alb_dns_name equivalent exposed on the admin plane.
func (c *Config) DNSName() string {
	if c.PublicHostname != "" {
		return c.PublicHostname
	}
	return fmt.Sprintf("localhost:%d", c.LBPort)
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
