package detect

import (
	"slices"
	"strings"
)

// masterMarker flags a URL as a likely master playlist. This is a naming
// heuristic only; several URLs may carry it and no further ordering applies.
const masterMarker = "master"

// IsMaster reports whether url looks like a master playlist
func IsMaster(url string) bool {
	return strings.Contains(url, masterMarker)
}

// Rank returns candidates with master playlists first. The sort is stable,
// so discovery order is kept within each group. The input is not modified.
func Rank(candidates []ObservedURL) []ObservedURL {
	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b ObservedURL) int {
		am, bm := IsMaster(a.URL), IsMaster(b.URL)
		switch {
		case am && !bm:
			return -1
		case !am && bm:
			return 1
		default:
			return 0
		}
	})
	return ranked
}
