package services

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultLockTimeout is how long a generation may hold the lock before it is
// force-released. Generous enough for a slow model, short enough that a
// crashed caller cannot wedge the engine.
const DefaultLockTimeout = 2 * time.Minute

// LockStatus is a read-only snapshot of the generation lock.
type LockStatus struct {
	IsLocked bool          `json:"is_locked"`
	LockID   string        `json:"lock_id,omitempty"`
	HeldFor  time.Duration `json:"held_for,omitempty"`
}

// GenerationLock is a process-wide single-flight gate for generation calls.
// Acquisition is fail-fast: a second caller is rejected immediately rather
// than queued; retrying is the caller's concern. An auto-release timer
// recovers from holders that crash before calling Release.
//
// Always construct instances with NewGenerationLock and inject them; the
// lock is deliberately not a package-level singleton so tests get isolated
// instances.
type GenerationLock struct {
	mu      sync.Mutex
	timeout time.Duration
	logger  *zap.Logger

	locked    bool
	lockID    string
	startTime time.Time
	seq       uint64
	timer     *time.Timer
}

// NewGenerationLock creates a lock with the given auto-release timeout.
// A non-positive timeout falls back to DefaultLockTimeout.
func NewGenerationLock(timeout time.Duration, logger *zap.Logger) *GenerationLock {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &GenerationLock{
		timeout: timeout,
		logger:  logger.Named("genlock"),
	}
}

// Acquire attempts to take the lock for operationID. Returns true and starts
// the auto-release timer on success; returns false with no side effects when
// the lock is already held.
func (l *GenerationLock) Acquire(operationID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		l.logger.Info("generation lock contended",
			zap.String("holder", l.lockID),
			zap.String("rejected", operationID),
			zap.Duration("held_for", time.Since(l.startTime)))
		return false
	}

	l.locked = true
	l.lockID = operationID
	l.startTime = time.Now()
	l.seq++

	// The timer closure captures the acquisition sequence so a stale timer
	// from a previous hold can never release a newer one.
	seq := l.seq
	l.timer = time.AfterFunc(l.timeout, func() { l.expire(seq) })

	l.logger.Debug("generation lock acquired", zap.String("operation_id", operationID))
	return true
}

// Release frees the lock if operationID matches the current holder.
// A mismatched or redundant release is a logged no-op.
func (l *GenerationLock) Release(operationID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked {
		l.logger.Debug("release of unheld generation lock ignored",
			zap.String("operation_id", operationID))
		return
	}
	if l.lockID != operationID {
		l.logger.Warn("release rejected: not the lock holder",
			zap.String("holder", l.lockID),
			zap.String("operation_id", operationID))
		return
	}

	l.logger.Debug("generation lock released",
		zap.String("operation_id", operationID),
		zap.Duration("held_for", time.Since(l.startTime)))
	l.clearLocked()
}

// ForceClear unconditionally releases the lock regardless of holder.
// Operator escape hatch; not part of normal control flow.
func (l *GenerationLock) ForceClear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked {
		return
	}

	l.logger.Warn("generation lock force-cleared",
		zap.String("holder", l.lockID),
		zap.Duration("held_for", time.Since(l.startTime)))
	l.clearLocked()
}

// Status returns a read-only snapshot of the lock.
func (l *GenerationLock) Status() LockStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked {
		return LockStatus{}
	}
	return LockStatus{
		IsLocked: true,
		LockID:   l.lockID,
		HeldFor:  time.Since(l.startTime),
	}
}

// expire force-releases a hold whose timer fired before Release was called.
func (l *GenerationLock) expire(seq uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked || l.seq != seq {
		return
	}

	l.logger.Warn("generation lock auto-released after timeout",
		zap.String("holder", l.lockID),
		zap.Duration("held_for", time.Since(l.startTime)))
	l.clearLocked()
}

// clearLocked resets lock state. Caller must hold l.mu.
func (l *GenerationLock) clearLocked() {
	l.locked = false
	l.lockID = ""
	l.startTime = time.Time{}
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}
