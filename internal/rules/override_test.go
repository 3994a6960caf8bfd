package rules

import (
	"testing"

	"github.com/jmelkko/dozeguard/internal/domain"
)

func driverEntry() domain.BlockerEntry {
	return domain.BlockerEntry{
		Section:    domain.SectionSystem,
		CallerType: domain.CallerDriver,
		Name:       "Legacy Kernel Caller",
		RawLine:    "[DRIVER] Legacy Kernel Caller",
	}
}

func TestIsOverridden_Match(t *testing.T) {
	overrides := []domain.OverrideRule{{
		CallerType:   domain.CallerDriver,
		Name:         "Legacy Kernel Caller",
		RequestTypes: domain.NewSectionSet(domain.SectionSystem),
	}}

	if !IsOverridden(driverEntry(), overrides) {
		t.Error("expected entry to be overridden")
	}
}

func TestIsOverridden_SectionNotInSet(t *testing.T) {
	overrides := []domain.OverrideRule{{
		CallerType:   domain.CallerDriver,
		Name:         "Legacy Kernel Caller",
		RequestTypes: domain.NewSectionSet(domain.SectionDisplay),
	}}

	if IsOverridden(driverEntry(), overrides) {
		t.Error("override for DISPLAY must not suppress a SYSTEM entry")
	}
}

func TestIsOverridden_CaseInsensitive(t *testing.T) {
	overrides := []domain.OverrideRule{{
		CallerType:   domain.CallerType("driver"),
		Name:         "LEGACY KERNEL CALLER",
		RequestTypes: domain.NewSectionSet(domain.SectionSystem),
	}}

	if !IsOverridden(driverEntry(), overrides) {
		t.Error("matching must be case-insensitive on caller type and name")
	}
}

func TestIsOverridden_ExactNameOnly(t *testing.T) {
	overrides := []domain.OverrideRule{{
		CallerType:   domain.CallerDriver,
		Name:         "Legacy Kernel",
		RequestTypes: domain.NewSectionSet(domain.SectionSystem),
	}}

	if IsOverridden(driverEntry(), overrides) {
		t.Error("prefix match must not suppress an entry")
	}
}

func TestIsOverridden_CallerTypeMismatch(t *testing.T) {
	overrides := []domain.OverrideRule{{
		CallerType:   domain.CallerProcess,
		Name:         "Legacy Kernel Caller",
		RequestTypes: domain.NewSectionSet(domain.SectionSystem),
	}}

	if IsOverridden(driverEntry(), overrides) {
		t.Error("PROCESS override must not suppress a DRIVER entry")
	}
}

func TestApplyOverrides_PreservesOrder(t *testing.T) {
	entries := []domain.BlockerEntry{
		{Section: domain.SectionSystem, CallerType: domain.CallerDriver, Name: "a"},
		{Section: domain.SectionSystem, CallerType: domain.CallerDriver, Name: "b"},
		{Section: domain.SectionDisplay, CallerType: domain.CallerProcess, Name: "c"},
	}
	overrides := []domain.OverrideRule{{
		CallerType:   domain.CallerDriver,
		Name:         "b",
		RequestTypes: domain.NewSectionSet(domain.SectionSystem),
	}}

	kept := ApplyOverrides(entries, overrides)
	if len(kept) != 2 {
		t.Fatalf("expected 2 surviving entries, got %d", len(kept))
	}
	if kept[0].Name != "a" || kept[1].Name != "c" {
		t.Errorf("order not preserved: %v", kept)
	}
}

func TestApplyOverrides_EmptyOverrideList(t *testing.T) {
	entries := []domain.BlockerEntry{driverEntry()}
	kept := ApplyOverrides(entries, nil)
	if len(kept) != 1 {
		t.Errorf("expected passthrough with no overrides, got %d entries", len(kept))
	}
}
