package suggestions

// duplicateThreshold is the similarity score at or above which two
// suggestion texts are treated as duplicates.
const duplicateThreshold = 0.85

// Similarity scores how alike two texts are, in [0,1]. Pluggable so the
// edit-distance implementation can be swapped without touching callers.
type Similarity func(a, b string) float64

// LevenshteinSimilarity is the default Similarity: normalized inverse
// edit distance.
func LevenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes edit distance with a rolling single-row buffer
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			current := row[j]
			row[j] = min3(row[j]+1, row[j-1]+1, prev+cost)
			prev = current
		}
	}
	return row[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
