package chat

type citationKey struct {
	title string
	page  int
}

// DedupeSources keeps the first source of every (title, page) pair, in input
// order. Titles are compared byte for byte.
func DedupeSources(sources []Source) []Source {
	seen := make(map[citationKey]struct{}, len(sources))
	result := make([]Source, 0, len(sources))
	for _, src := range sources {
		key := citationKey{title: src.Title, page: src.Page}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, src)
	}
	return result
}
