package rules

import (
	"strings"

	"github.com/jmelkko/dozeguard/internal/domain"
)

// IsIgnored reports whether a user ignore rule exempts the entry. Caller
// type and name match case-insensitively; the rule's section must equal the
// entry's section or be the "*" wildcard.
func IsIgnored(entry domain.BlockerEntry, ignores []domain.IgnoreRule) bool {
	for _, r := range ignores {
		if !strings.EqualFold(string(r.CallerType), string(entry.CallerType)) {
			continue
		}
		if !strings.EqualFold(r.Name, entry.Name) {
			continue
		}
		if r.Section == domain.SectionAny || strings.EqualFold(string(r.Section), string(entry.Section)) {
			return true
		}
	}
	return false
}

// ApplyIgnoreRules returns the entries that survive the ignore pass. Runs
// after ApplyOverrides; with an empty rule list the input passes through
// untouched.
func ApplyIgnoreRules(entries []domain.BlockerEntry, ignores []domain.IgnoreRule) []domain.BlockerEntry {
	if len(ignores) == 0 {
		return entries
	}
	kept := make([]domain.BlockerEntry, 0, len(entries))
	for _, e := range entries {
		if !IsIgnored(e, ignores) {
			kept = append(kept, e)
		}
	}
	return kept
}
