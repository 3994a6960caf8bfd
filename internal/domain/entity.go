// Package domain contains core business entities and interfaces.
// This is the innermost layer - no dependencies on other packages.
package domain

import "time"

// Section identifies the power-request category a blocker was reported under.
// These mirror the section headers of the powercfg requests report.
type Section string

const (
	SectionSystem    Section = "SYSTEM"
	SectionDisplay   Section = "DISPLAY"
	SectionAwayMode  Section = "AWAYMODE"
	SectionExecution Section = "EXECUTION"

	// SectionSession is never produced by the report parser. It marks the
	// synthetic blocker contributed by the remote-session probe.
	SectionSession Section = "SESSION"

	// SectionAny is the ignore-rule wildcard matching every section.
	SectionAny Section = "*"
)

// ParseSection maps a report header name to a known request section.
// Unrecognized headers (new OS builds add their own) return ok=false;
// callers drop those sections rather than failing the parse.
func ParseSection(name string) (Section, bool) {
	switch Section(name) {
	case SectionSystem, SectionDisplay, SectionAwayMode, SectionExecution:
		return Section(name), true
	}
	return "", false
}

// CallerType classifies who asserted a power request.
// The report may carry arbitrary bracketed tokens; anything beyond the
// well-known three is preserved verbatim (uppercased) rather than rejected.
type CallerType string

const (
	CallerProcess CallerType = "PROCESS"
	CallerService CallerType = "SERVICE"
	CallerDriver  CallerType = "DRIVER"
	CallerUnknown CallerType = "UNKNOWN"
)

// BlockerEntry is one parsed line of the requests report: an active power
// request that would prevent the machine from sleeping. Entries live only for
// a single refresh cycle and are never mutated after parsing.
type BlockerEntry struct {
	Section    Section
	CallerType CallerType
	Name       string
	RawLine    string
}

// OverrideRule is one administrator-configured request override: the OS has
// been told to disregard power requests by (CallerType, Name) for the listed
// request sections. Rebuilt from the override report on every refresh.
type OverrideRule struct {
	CallerType   CallerType
	Name         string
	RequestTypes SectionSet
}

// SectionSet is the set of request sections an override applies to.
type SectionSet map[Section]struct{}

// NewSectionSet builds a set from the given sections.
func NewSectionSet(sections ...Section) SectionSet {
	s := make(SectionSet, len(sections))
	for _, sec := range sections {
		s.Add(sec)
	}
	return s
}

// Add inserts a section into the set.
func (s SectionSet) Add(sec Section) { s[sec] = struct{}{} }

// Has reports whether the set contains the section.
func (s SectionSet) Has(sec Section) bool {
	_, ok := s[sec]
	return ok
}

// Sections returns the members in report-header order.
func (s SectionSet) Sections() []Section {
	ordered := []Section{SectionSystem, SectionDisplay, SectionAwayMode, SectionExecution}
	out := make([]Section, 0, len(s))
	for _, sec := range ordered {
		if s.Has(sec) {
			out = append(out, sec)
		}
	}
	return out
}

// IgnoreRule is a user-configured, application-local exemption. Unlike an
// OverrideRule it is owned by this application, persisted in the local store,
// and may use SectionAny to match a caller in every section.
type IgnoreRule struct {
	Section    Section
	CallerType CallerType
	Name       string
}

// Snapshot is the immutable result of one blocker-status refresh. A snapshot
// is replaced wholesale on every publication; readers never observe a
// partially updated value.
type Snapshot struct {
	Timestamp   time.Time
	HasBlockers bool
	Summary     string
}

// PowerRequestBlocker is the read-only export view of a surviving blocker,
// exposed for inspection and ignore-list management. PID is a best-effort
// annotation (0 when the caller could not be matched to a live process).
type PowerRequestBlocker struct {
	Section    Section
	CallerType CallerType
	Name       string
	RawLine    string
	PID        int
}

// Remote reports whether this is the synthetic remote-session blocker.
func (b PowerRequestBlocker) Remote() bool { return b.Section == SectionSession }

// EventKind labels a recorded decision event.
type EventKind string

const (
	EventAgentStart EventKind = "agent-start"
	EventAgentStop  EventKind = "agent-stop"
	EventIdleFired  EventKind = "idle-reached"
	EventSuspend    EventKind = "suspend"
	EventResume     EventKind = "resume"
)

// DecisionEvent is one row of the local decision history.
type DecisionEvent struct {
	ID     string
	At     time.Time
	Kind   EventKind
	Detail string
}
