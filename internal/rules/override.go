// Package rules decides which parsed blocker entries actually veto sleep.
// Two independent prune passes run after parsing: administrator-configured
// request overrides (mirroring the OS's own override semantics, so the
// verdict here agrees with what the OS would let sleep) and user-configured
// ignore rules local to this application.
package rules

import (
	"strings"

	"github.com/jmelkko/dozeguard/internal/domain"
)

// IsOverridden reports whether an administrator override suppresses the
// entry. A rule matches when its request-type set contains the entry's
// section and both caller type and name match case-insensitively. Name
// matching is exact - no prefix or wildcard forms.
func IsOverridden(entry domain.BlockerEntry, overrides []domain.OverrideRule) bool {
	for _, o := range overrides {
		if !o.RequestTypes.Has(entry.Section) {
			continue
		}
		if !strings.EqualFold(string(o.CallerType), string(entry.CallerType)) {
			continue
		}
		if strings.EqualFold(o.Name, entry.Name) {
			return true
		}
	}
	return false
}

// ApplyOverrides returns the entries that survive the override pass,
// preserving report order.
func ApplyOverrides(entries []domain.BlockerEntry, overrides []domain.OverrideRule) []domain.BlockerEntry {
	if len(overrides) == 0 {
		return entries
	}
	kept := make([]domain.BlockerEntry, 0, len(entries))
	for _, e := range entries {
		if !IsOverridden(e, overrides) {
			kept = append(kept, e)
		}
	}
	return kept
}
