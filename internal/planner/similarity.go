// Package planner analyzes a snapshot and proposes maintenance actions.
//
// The planner is read-only: it inspects the loaded snapshot and the directive
// files and returns a list of actions describing what should be done. The
// executor applies them.
package planner

// Ratio computes Ratcliff/Obershelp similarity between two strings: twice
// the number of matching characters divided by the total length, where
// matches are found by recursively locating the longest common substring.
// Returns 1 for two empty strings.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchCount(ra, rb)) / float64(total)
}

// matchCount sums the sizes of all matching blocks between a and b.
func matchCount(a, b []rune) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchCount(a[:ai], b[:bi]) +
		matchCount(a[ai+size:], b[bi+size:])
}

// longestMatch finds the longest common substring of a and b, preferring the
// earliest occurrence in a, then in b.
func longestMatch(a, b []rune) (besti, bestj, bestsize int) {
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	// j2len[j] is the length of the match ending at a[i-1], b[j-1] from the
	// previous row of the implicit DP table.
	j2len := make(map[int]int)
	for i, r := range a {
		next := make(map[int]int)
		for _, j := range b2j[r] {
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return besti, bestj, bestsize
}
