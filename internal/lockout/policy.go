// Package lockout holds the pure account-lockout decision logic: given an
// account's failure counter and block-expiry timestamp, decide whether a
// login attempt may proceed and what the next persisted state should be.
// The package does no I/O; callers pass the current time in and persist the
// returned state themselves.
package lockout

import "time"

const (
	DefaultThreshold = 3
	DefaultBlockFor  = 60 * time.Second
)

// Policy is the lockout window: how many consecutive failures trigger a
// block and how long the block lasts.
type Policy struct {
	Threshold int
	BlockFor  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold, BlockFor: DefaultBlockFor}
}

// Decision is the outcome of a gate check before password verification.
type Decision struct {
	Blocked     bool
	SecondsLeft int64
}

// State is the failure counter and block timestamp to persist after an
// attempt. A nil BlockedUntil means no active block.
type State struct {
	Attempts     int
	BlockedUntil *time.Time
}

// Gate reports whether an attempt is currently blocked. SecondsLeft is the
// remaining block time rounded up to whole seconds, never below 1 while the
// block is active.
func (p Policy) Gate(now time.Time, blockedUntil *time.Time) Decision {
	if blockedUntil == nil || !blockedUntil.After(now) {
		return Decision{}
	}

	left := blockedUntil.Sub(now)
	seconds := int64(left / time.Second)
	if left%time.Second != 0 {
		seconds++
	}
	if seconds < 1 {
		seconds = 1
	}

	return Decision{Blocked: true, SecondsLeft: seconds}
}

// RecordFailure returns the state after one more wrong password. Reaching
// the threshold imposes a block of BlockFor starting at now and resets the
// counter to zero; otherwise the counter is incremented and any existing
// block timestamp is kept as-is.
func (p Policy) RecordFailure(attempts int, blockedUntil *time.Time, now time.Time) State {
	attempts++
	if attempts >= p.Threshold {
		until := now.Add(p.BlockFor)
		return State{Attempts: 0, BlockedUntil: &until}
	}

	return State{Attempts: attempts, BlockedUntil: blockedUntil}
}

// RecordSuccess returns the state after a correct password: counter zeroed,
// block cleared.
func RecordSuccess() State {
	return State{}
}
