package module

import (
	"os"
	"strconv"
	"time"

	"dragoman/internal/platform/config"
)

// Options controls engine behavior. Values may also be read from env
type Options struct {
	ConflictIncludeWaiting bool
	BatchSize              int
	CommitRetries          int
	StoreRetryDelay        time.Duration
	WorkerID               string
}

// FromConfig reads options; BATCH_SIZE is the operator-facing knob, the
// rest live under CORE_ENGINE_
func FromConfig(cfg config.Conf) Options {
	eng := cfg.Prefix("CORE_ENGINE_")
	host, _ := os.Hostname()
	return Options{
		ConflictIncludeWaiting: eng.MayBool("CONFLICT_INCLUDE_WAITING", false),
		BatchSize:              cfg.MayInt("BATCH_SIZE", 0),
		CommitRetries:          eng.MayInt("COMMIT_RETRIES", 2),
		StoreRetryDelay:        eng.MayDuration("STORE_RETRY_DELAY", 100*time.Millisecond),
		WorkerID:               eng.MayString("WORKER_ID", host+":"+strconv.Itoa(os.Getpid())),
	}
}
