package report

import (
	"strings"
	"unicode"

	"github.com/jmelkko/dozeguard/internal/domain"
)

// parseCallerHeader recognizes the caller-type header lines of the override
// report. The tool prints them bracketed on current builds ("[PROCESS]") and
// bare on older ones; both forms are accepted, case-insensitively.
func parseCallerHeader(trimmed string) (domain.CallerType, bool) {
	name := strings.ToUpper(strings.Trim(trimmed, "[]"))
	switch ct := domain.CallerType(name); ct {
	case domain.CallerProcess, domain.CallerService, domain.CallerDriver:
		return ct, true
	}
	return "", false
}

// splitOverrideTokens splits a request-type line on whitespace, commas and
// semicolons, dropping empty tokens.
func splitOverrideTokens(trimmed string) []string {
	return strings.FieldsFunc(trimmed, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';'
	})
}

// ParseOverrides parses the raw "request overrides" report. Each caller-type
// header introduces at most one override: the first non-header line is the
// caller name, every following line contributes request-type keywords until
// the next header. Unrecognized tokens and lines before the first header are
// ignored.
func ParseOverrides(raw string) []domain.OverrideRule {
	var (
		rules       []domain.OverrideRule
		callerType  domain.CallerType
		currentOpen bool
	)

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if ct, ok := parseCallerHeader(trimmed); ok {
			callerType = ct
			currentOpen = false
			continue
		}

		// Entry text before any recognized header cannot form a rule.
		if callerType == "" {
			continue
		}

		if !currentOpen {
			rules = append(rules, domain.OverrideRule{
				CallerType:   callerType,
				Name:         normalizeName(trimmed),
				RequestTypes: make(domain.SectionSet),
			})
			currentOpen = true
			continue
		}

		current := &rules[len(rules)-1]
		for _, token := range splitOverrideTokens(trimmed) {
			keyword := strings.ToUpper(strings.TrimRight(token, ".,;"))
			if sec, ok := domain.ParseSection(keyword); ok {
				current.RequestTypes.Add(sec)
			}
		}
	}

	return rules
}
