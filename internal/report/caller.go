// Package report parses the semi-structured text reports produced by the
// powercfg diagnostics tool. The exact format varies between OS builds and
// entry sources, so both parsers are deliberately lenient: unknown sections
// and malformed lines are dropped, never surfaced as errors.
package report

import (
	"strings"

	"github.com/jmelkko/dozeguard/internal/domain"
)

// serviceMarker appears in entry lines reported for services without a
// bracketed caller-type prefix.
const serviceMarker = "(Service)"

// ExtractCaller splits a single entry line into caller type and name.
// Three-tier fallback, most structured form first:
//
//  1. "[TYPE] name"        → bracketed token (uppercased) is the caller type
//  2. "name (Service) ..." → SERVICE, text before the marker is the name
//  3. anything else        → UNKNOWN, the whole line is the name
func ExtractCaller(line string) (domain.CallerType, string) {
	trimmed := strings.TrimSpace(line)

	if strings.HasPrefix(trimmed, "[") {
		if end := strings.Index(trimmed, "]"); end >= 0 {
			typ := strings.ToUpper(strings.TrimSpace(trimmed[1:end]))
			return domain.CallerType(typ), normalizeName(trimmed[end+1:])
		}
	}

	if idx := strings.Index(trimmed, serviceMarker); idx >= 0 {
		return domain.CallerService, normalizeName(trimmed[:idx])
	}

	return domain.CallerUnknown, normalizeName(trimmed)
}

// normalizeName trims the name and strips one residual bracketed prefix.
// Some report lines double up the classification ("[DRIVER] [FDO] name");
// the caller type is taken from the first bracket, the name must not keep
// the second.
func normalizeName(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		if end := strings.Index(s, "]"); end >= 0 {
			s = strings.TrimSpace(s[end+1:])
		}
	}
	return s
}
