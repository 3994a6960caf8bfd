//go:build !windows

package power

func shellCommand(line string) (string, []string) {
	return "sh", []string{"-c", line}
}
