package report

import (
	"strings"

	"github.com/jmelkko/dozeguard/internal/domain"
)

// lineKind classifies one line of the requests report. Classification happens
// before any interpretation so the parser stays a flat, tolerant line loop.
type lineKind int

const (
	lineBlank lineKind = iota
	lineHeader
	lineSentinel
	lineEntry
)

// sentinel is printed by the tool for a section with no active requests.
const sentinel = "None."

// classifyRequestLine determines what a (trimmed) report line is. For headers
// the uppercased header name is returned alongside the kind.
func classifyRequestLine(trimmed string) (lineKind, string) {
	if trimmed == "" {
		return lineBlank, ""
	}
	if strings.HasSuffix(trimmed, ":") {
		name := strings.ToUpper(strings.TrimSpace(strings.TrimSuffix(trimmed, ":")))
		return lineHeader, name
	}
	if strings.EqualFold(trimmed, sentinel) {
		return lineSentinel, ""
	}
	return lineEntry, ""
}

// ParseRequests parses the raw "active power requests" report into blocker
// entries, in report order. Entries under an unrecognized section header are
// dropped silently; a well-formed section followed by the "None." sentinel
// yields no entries.
func ParseRequests(raw string) []domain.BlockerEntry {
	var (
		entries []domain.BlockerEntry
		section domain.Section
		known   bool
	)

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)

		kind, header := classifyRequestLine(trimmed)
		switch kind {
		case lineBlank, lineSentinel:
			continue

		case lineHeader:
			section, known = domain.ParseSection(header)

		case lineEntry:
			if !known {
				continue
			}
			callerType, name := ExtractCaller(trimmed)
			entries = append(entries, domain.BlockerEntry{
				Section:    section,
				CallerType: callerType,
				Name:       name,
				RawLine:    trimmed,
			})
		}
	}

	return entries
}
