package gitignore

// DiffRules computes the patterns added and removed between two versions of
// one ignore file. Either matcher may be nil. The registry uses it to log what
// an edit-in-place changed.
func DiffRules(old, updated *Matcher) (added, removed []string) {
	oldPatterns := rawPatterns(old)
	newPatterns := rawPatterns(updated)

	oldSet := make(map[string]bool, len(oldPatterns))
	for _, p := range oldPatterns {
		oldSet[p] = true
	}

	newSet := make(map[string]bool, len(newPatterns))
	for _, p := range newPatterns {
		newSet[p] = true
	}

	// Added: in new but not in old
	for _, p := range newPatterns {
		if !oldSet[p] {
			added = append(added, p)
		}
	}

	// Removed: in old but not in new
	for _, p := range oldPatterns {
		if !newSet[p] {
			removed = append(removed, p)
		}
	}

	return added, removed
}

func rawPatterns(m *Matcher) []string {
	if m == nil {
		return nil
	}
	rules := m.Rules()
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Raw)
	}
	return out
}
