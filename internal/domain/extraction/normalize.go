package extraction

import "strings"

// Normalize splits raw document text into trimmed, non-empty lines.
// Case and punctuation are kept as-is; matching is case-insensitive later.
func Normalize(raw string) []string {
	if raw == "" {
		return nil
	}

	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	parts := strings.Split(raw, "\n")
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}
