package printing

import (
	"sort"

	"github.com/jmgilman/go/errors"
)

// resolvePages validates 1-indexed page numbers against count and returns
// them deduplicated and sorted. No pages means all pages.
func resolvePages(pages []int, count int) ([]int, error) {
	if len(pages) == 0 {
		all := make([]int, count)
		for i := range all {
			all[i] = i + 1
		}
		return all, nil
	}

	seen := make(map[int]bool)
	var out []int
	for _, p := range pages {
		if p < 1 || p > count {
			return nil, errors.WithContext(
				errors.Newf(errors.CodeInvalidInput, "page %d out of range (1-%d)", p, count),
				"page", p,
			)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	sort.Ints(out)
	return out, nil
}
