package launch

import (
	"fmt"
	"sync"
	"time"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"
	"github.com/core-tools/hsu-simlaunch/pkg/logging"
)

// ValidateProcessOptions checks the respawn settings of a process action
func ValidateProcessOptions(opts ProcessOptions) error {
	switch opts.Output {
	case "", OutputScreen, OutputLog:
	default:
		return errors.NewValidationError(fmt.Sprintf("unsupported output mode: %s", opts.Output), nil).
			WithContext("supported_modes", "screen, log")
	}
	if opts.RespawnDelay < 0 {
		return errors.NewValidationError(fmt.Sprintf("respawn_delay cannot be negative: %v", opts.RespawnDelay), nil)
	}
	if opts.RespawnMaxRetries < 0 {
		return errors.NewValidationError(fmt.Sprintf("respawn_max_retries cannot be negative: %d", opts.RespawnMaxRetries), nil)
	}
	if opts.RespawnBackoffRate < 0 {
		return errors.NewValidationError(fmt.Sprintf("respawn_backoff_rate cannot be negative: %f", opts.RespawnBackoffRate), nil)
	}
	return nil
}

// respawnBreaker spaces respawns of one process and stops them after too many attempts
type respawnBreaker struct {
	opts   ProcessOptions
	logger logging.Logger

	mutex    sync.Mutex
	attempts int
	open     bool
}

func newRespawnBreaker(opts ProcessOptions, logger logging.Logger) *respawnBreaker {
	return &respawnBreaker{opts: opts, logger: logger}
}

// next returns how long to wait before the next respawn, or an error once
// the retries are used up
func (b *respawnBreaker) next() (time.Duration, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.open {
		return 0, errors.NewProcessError("respawn circuit breaker is open", nil)
	}

	if b.opts.RespawnMaxRetries > 0 && b.attempts >= b.opts.RespawnMaxRetries {
		b.logger.Errorf("Max respawn retries exceeded, giving up after %d attempts", b.attempts)
		b.open = true
		return 0, errors.NewProcessError("max respawn retries exceeded", nil).WithContext("attempts", b.attempts)
	}

	delay := b.opts.RespawnDelay
	if b.opts.RespawnBackoffRate > 1 {
		multiplier := 1.0
		for i := 0; i < b.attempts; i++ {
			multiplier *= b.opts.RespawnBackoffRate
		}
		delay = time.Duration(float64(delay) * multiplier)
	}

	b.attempts++
	return delay, nil
}

func (b *respawnBreaker) reset() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.attempts > 0 || b.open {
		b.logger.Debugf("Resetting respawn attempts, previous attempts: %d", b.attempts)
	}
	b.attempts = 0
	b.open = false
}

func (b *respawnBreaker) count() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.attempts
}
