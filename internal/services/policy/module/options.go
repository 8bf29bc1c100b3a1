package module

import (
	"time"

	"dragoman/internal/core/modes"
	"dragoman/internal/platform/config"
	"dragoman/internal/platform/logger"
	"dragoman/internal/services/policy/domain"
)

// Options controls policy resolver behavior
type Options struct {
	CacheTTL time.Duration
	Fallback domain.Policy
}

// FromConfig reads options from the root config. POLICY_CACHE_SECONDS
// tunes the resolver cache; the remaining keys seed the policy served
// before the first admin write
func FromConfig(cfg config.Conf) Options {
	fb := domain.Default()
	fb.AutoAssignEnabled = cfg.MayBool("AUTO_ASSIGN_ENABLED", fb.AutoAssignEnabled)
	fb.FairnessWindowDays = cfg.MayInt("FAIRNESS_WINDOW_DAYS", fb.FairnessWindowDays)
	fb.MaxGapHours = cfg.MayFloat64("MAX_GAP_HOURS", fb.MaxGapHours)
	if raw := cfg.MayString("ASSIGN_MODE", ""); raw != "" {
		m, err := modes.ParseMode(raw)
		if err != nil {
			logger.Get().Warn().Str("value", raw).Msg("invalid ASSIGN_MODE; keeping default")
		} else {
			fb.Mode = m
		}
	}

	return Options{
		CacheTTL: time.Duration(cfg.MayInt("POLICY_CACHE_SECONDS", 300)) * time.Second,
		Fallback: fb,
	}
}
