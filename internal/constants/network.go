package constants

import "time"

// Upstream HTTP client settings. The deadline is generous on purpose:
// video predictLongRunning starts can take well over a minute.
const (
	UpstreamTimeout       = 120 * time.Second
	UpstreamMaxIdleConns  = 100
	UpstreamIdlePerHost   = 50
	UpstreamIdleTimeout   = 90 * time.Second
	TransportRetrySleep   = 500 * time.Millisecond
	TokenRefreshTimeout   = 30 * time.Second
	ServerShutdownTimeout = 15 * time.Second
	ServerGracefulWait    = 500 * time.Millisecond
)

// TokenRefreshWorkers bounds concurrent OAuth assertion signing so a slow
// token endpoint cannot monopolize request goroutines.
const TokenRefreshWorkers = 4

// TokenRefreshAhead renews bearers this long before their reported expiry.
const TokenRefreshAhead = 60 * time.Second
