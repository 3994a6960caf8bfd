//go:build windows

package power

func shellCommand(line string) (string, []string) {
	return "cmd", []string{"/C", line}
}
