package api

import "strings"

// TrimStrToRect cuts a string to at most maxHeight lines of maxWidth bytes,
// appending "..." where content was dropped. Streamed diagnostic text goes
// through this so a pathological submission cannot flood the event channel.
func TrimStrToRect(s string, maxHeight int, maxWidth int) string {
	res := ""
	lines := strings.Split(s, "\n")
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
		lines = append(lines, "...")
	}
	for i, line := range lines {
		if i > 0 {
			res += "\n"
		}
		if len(line) > maxWidth {
			res += line[:maxWidth] + "..."
		} else {
			res += line
		}
	}
	return res
}
