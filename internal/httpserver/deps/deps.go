package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/steward-lb/steward/internal/director"
	"github.com/steward-lb/steward/internal/logger"
	"github.com/steward-lb/steward/internal/pool"
	redisstore "github.com/steward-lb/steward/internal/store/redis"
)

type Deps struct {
	Logger        logger.Logger
	StartTime     time.Time
	Version       string
	Commit        string
	BuildDate     string
	GoVersion     string
	TimeNow       func() time.Time   // for testing, defaults to time.Now
	AllowedHosts  []string           // Host headers allowed on guarded endpoints
	AllowedCIDRS  []string           // IPs allowed on guarded endpoints
	TrustProxy    bool               // true if running behind a trusted reverse proxy
	Roster        *pool.Roster       // live pool membership
	Director      *director.Director // data-plane router, for rules introspection
	Store         *redisstore.Store  // nil when persistence is disabled
	RedisClient   *redis.Client      // nil when persistence is disabled
	DNSName       string             // address clients use to reach the traffic director
	MinSize       int                // configured pool lower bound
	MaxSize       int                // configured pool upper bound
	RulesFile     string             // path to the routing rules file
	ReloadTrigger chan struct{}      // channel to trigger a manual rules reload
}
