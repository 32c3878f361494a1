// Package similarity scores how alike two strings are using Levenshtein
// edit distance. Scores are used for fuzzy identity matching and for the
// offline duplicate audit.
package similarity

import "strings"

// Levenshtein returns the minimum number of single-rune insertions,
// deletions and substitutions that turn a into b.
func Levenshtein(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	if a == b {
		return 0
	}
	if len(ar) < len(br) {
		ar, br = br, ar
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i, ca := range ar {
		curr[0] = i + 1
		for j, cb := range br {
			ins := curr[j] + 1
			del := prev[j+1] + 1
			sub := prev[j]
			if ca != cb {
				sub++
			}
			curr[j+1] = min(ins, del, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}

// Calculate returns a similarity in [0, 1] between a and b, compared
// case-insensitively: (longer - distance) / longer, where longer is the
// rune length of the longer string. Two empty strings score 1.0.
//
// The score is symmetric and Calculate(x, x) is always 1.0.
func Calculate(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	longer := max(len([]rune(a)), len([]rune(b)))
	if longer == 0 {
		return 1.0
	}
	return float64(longer-Levenshtein(a, b)) / float64(longer)
}

// Match is a candidate scored against a target.
type Match[T any] struct {
	Item  T
	Score float64
}

// Best scores every candidate key against target and returns the highest
// scoring one. ok is false when candidates is empty. Ties keep the first candidate.
func Best[T any](target string, candidates []T, key func(T) string) (best Match[T], ok bool) {
	for i, c := range candidates {
		score := Calculate(target, key(c))
		if i == 0 || score > best.Score {
			best = Match[T]{Item: c, Score: score}
			ok = true
		}
	}
	return best, ok
}
