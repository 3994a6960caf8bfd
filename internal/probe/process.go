package probe

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/jmelkko/dozeguard/internal/domain"
)

// GopsResolver maps blocker caller names to live process IDs by scanning the
// process table. Resolution is best effort: the diagnostics report prints
// kernel device paths rather than PIDs, so a name that matches no running
// image simply resolves to nothing.
type GopsResolver struct{}

// NewProcessResolver returns a process-table backed resolver.
func NewProcessResolver() GopsResolver {
	return GopsResolver{}
}

// FindPID returns the PID of the first running process whose image name
// matches the caller name from a diagnostics report.
func (GopsResolver) FindPID(callerName string) (int, bool) {
	image := ImageName(callerName)
	if image == "" {
		return 0, false
	}

	procs, err := process.Processes()
	if err != nil {
		return 0, false
	}
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		if strings.EqualFold(name, image) {
			return int(p.Pid), true
		}
	}
	return 0, false
}

// ImageName extracts the executable image name from a report caller name.
// The diagnostics tool prints process callers as kernel device paths such as
// \Device\HarddiskVolume3\Program Files\app\app.exe; service and driver
// callers are usually bare names and pass through unchanged.
func ImageName(callerName string) string {
	s := strings.TrimSpace(callerName)
	if i := strings.LastIndexAny(s, `\/`); i >= 0 {
		s = s[i+1:]
	}
	return s
}

var _ domain.ProcessResolver = GopsResolver{}
