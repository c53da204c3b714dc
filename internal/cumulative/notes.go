package cumulative

import "strings"

// boilerplatePhrases are reply-request lines the extraction model copies
// into additional_notes; they carry no shipment information.
var boilerplatePhrases = []string{
	"please provide the updated quote",
	"please provide these details",
	"please provide the correct details",
	"please provide it in your response",
}

// mergeRequirements appends incoming requirements that are not already
// recorded, keeping first-seen order.
func mergeRequirements(existing, incoming []string) []string {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r] = struct{}{}
	}
	out := existing
	for _, r := range incoming {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// mergeNotes unions the non-blank lines of both notes, existing lines
// first, and drops boilerplate. If nothing but boilerplate remains the
// incoming note is kept as-is.
func mergeNotes(existing, incoming string) string {
	if strings.TrimSpace(incoming) == "" {
		return existing
	}
	if strings.TrimSpace(existing) == "" {
		return incoming
	}

	seen := make(map[string]struct{})
	var lines []string
	for _, note := range []string{existing, incoming} {
		for _, line := range strings.Split(note, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
			if isBoilerplate(line) {
				continue
			}
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return strings.TrimSpace(incoming)
	}
	return strings.Join(lines, "\n")
}

func isBoilerplate(line string) bool {
	lower := strings.ToLower(line)
	for _, phrase := range boilerplatePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
