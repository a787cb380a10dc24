package sandbox

import "strings"

// Engine framing lines in the build stream: step and layer markers,
// status noise, blank lines. Everything else is compiler output worth
// keeping in the diagnostic log.
func isFrameLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	for _, prefix := range []string{
		"Step ",
		"---> ",
		"Successfully built",
		"Successfully tagged",
		"Removing intermediate container",
		"Sending build context",
	} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// filterBuildOutput keeps only the compiler-diagnostic lines of one
// streamed build chunk.
func filterBuildOutput(chunk string) []string {
	var kept []string
	for _, line := range strings.Split(chunk, "\n") {
		if isFrameLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}
