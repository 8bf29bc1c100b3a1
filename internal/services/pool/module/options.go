package module

import (
	"time"

	"dragoman/internal/platform/config"
	"dragoman/internal/services/pool/domain"
)

// Options controls pool behavior. Values may also be read from env
type Options struct {
	LeaseTTL    time.Duration
	RetryBase   time.Duration
	MaxAttempts int
}

// FromConfig reads options; LEASE_TIMEOUT_SECONDS is the operator-facing
// knob, the rest live under CORE_POOL_
func FromConfig(cfg config.Conf) Options {
	pool := cfg.Prefix("CORE_POOL_")
	return Options{
		LeaseTTL:    time.Duration(cfg.MayInt("LEASE_TIMEOUT_SECONDS", 60)) * time.Second,
		RetryBase:   pool.MayDuration("RETRY_BASE", 30*time.Second),
		MaxAttempts: pool.MayInt("MAX_ATTEMPTS", domain.MaxAttempts),
	}
}
