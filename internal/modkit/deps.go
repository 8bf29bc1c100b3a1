// Package modkit provides module wiring and core deps
package modkit

import (
	"dragoman/internal/modkit/repokit"
	"dragoman/internal/platform/config"
	"dragoman/internal/platform/logger"
	"dragoman/internal/platform/store"

	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log   logger.Logger
	Cfg   config.Conf
	PG    repokit.TxRunner
	CH    store.Clickhouse
	RDB   redis.UniversalClient
	Clock clock.PassiveClock
}

// ZeroOK returns true when deps are safe to use with zero values in tests
// consumers should still nil check for optional stores
func (d Deps) ZeroOK() bool { return true }
