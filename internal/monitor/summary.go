// Package monitor contains the blocker-detection and idle-decision core: one
// inspection pipeline over the diagnostics reports, a lock-free snapshot
// cache with coalesced background refresh, and the edge-triggered decision
// engine that drives the agent.
package monitor

import (
	"fmt"
	"strings"

	"github.com/jmelkko/dozeguard/internal/domain"
)

const (
	// summaryEntryLimit caps a single rendered entry; anything longer is cut
	// and marked with an ellipsis. The cap applies per entry, not to the
	// joined summary.
	summaryEntryLimit = 200

	summarySeparator = " | "
	summaryEllipsis  = "..."
)

// RenderEntry formats one blocker for human consumption.
func RenderEntry(b domain.PowerRequestBlocker) string {
	return fmt.Sprintf("%s: %s", b.Section, b.RawLine)
}

// Summarize renders the surviving blockers into the snapshot summary string.
func Summarize(blockers []domain.PowerRequestBlocker) string {
	parts := make([]string, 0, len(blockers))
	for _, b := range blockers {
		parts = append(parts, truncate(RenderEntry(b), summaryEntryLimit))
	}
	return strings.Join(parts, summarySeparator)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + summaryEllipsis
}
