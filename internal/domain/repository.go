package domain

import (
	"context"
	"time"
)

// DiagnosticsSource runs the external power-diagnostics tool and returns its
// raw report text. Implementation: powercfg invocation with a bounded timeout.
// A non-nil error means the invocation itself failed (launch failure, non-zero
// exit, timeout); callers treat that as fail-closed.
type DiagnosticsSource interface {
	// RequestsReport returns the raw "active power requests" report.
	RequestsReport(ctx context.Context) (string, error)

	// OverridesReport returns the raw "request overrides" report.
	OverridesReport(ctx context.Context) (string, error)
}

// IdleSource reports how long the user has been idle.
// Implementation: GetLastInputInfo on Windows.
type IdleSource interface {
	// IdleDuration returns the wall-clock time since the last user input.
	IdleDuration() (time.Duration, error)
}

// SessionProbe detects an active remote-desktop login session.
// Implementations never report an error: any enumeration or query failure is
// treated as "no remote session" (fail-open), in contrast to the fail-closed
// policy for diagnostics failures.
type SessionProbe interface {
	// RemoteActive reports whether any active session is a remote-desktop
	// connection.
	RemoteActive() bool
}

// RuleSource supplies the user's ignore rules. The engine reads a fresh list
// at the start of every refresh, so edits made by another process become
// visible on the next cycle without restarting the agent.
type RuleSource interface {
	// IgnoreRules returns the current ignore-rule list.
	IgnoreRules() ([]IgnoreRule, error)
}

// RuleStore is the persistent settings and decision-history store.
// Implementation: SQLCipher-encrypted SQLite database in the data directory.
type RuleStore interface {
	RuleSource

	// ReplaceIgnoreRules atomically replaces the whole ignore-rule list.
	// Replace-whole-list is the only mutation; rules are never edited in place.
	ReplaceIgnoreRules(rules []IgnoreRule) error

	// RecordEvent appends a decision event to the history.
	RecordEvent(kind EventKind, detail string) error

	// RecentEvents returns up to n most recent events, newest first.
	RecentEvents(n int) ([]DecisionEvent, error)

	// Close releases the underlying database handle.
	Close() error
}

// Suspender puts the machine into a low-power state. The call blocks until
// the system wakes again (that is how the underlying OS call behaves).
type Suspender interface {
	// Suspend enters suspend-to-RAM, or hibernate when requested.
	Suspend(hibernate bool) error
}

// ResumeNotifier lets components learn that the system woke from suspend.
// It is an explicit per-process subscription registry, not global state;
// the returned cancel function removes the subscription.
type ResumeNotifier interface {
	// OnResume registers fn to run after a wake is detected.
	OnResume(fn func()) (cancel func())
}

// ProcessResolver maps a blocker's caller name to a live process, when one
// can be found. Used only to enrich the export view; never affects the
// blocker verdict.
type ProcessResolver interface {
	// FindPID returns the PID of a running process whose image name matches
	// the given caller name, or ok=false when no match exists.
	FindPID(callerName string) (pid int, ok bool)
}

// KeyProvider supplies the encryption key for the local store.
type KeyProvider interface {
	// GetKey returns the stored encryption key.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists reports whether a key has been stored.
	KeyExists() bool
}
