// Package similarity implements the string comparison primitives used by the
// matchers. Scores are in [0,1]; 1 means identical.
package similarity

import (
	"sort"
	"strings"
)

// JaroWinkler computes Jaro-Winkler similarity with the standard 0.1 prefix
// scaling over at most four leading characters.
func JaroWinkler(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	if s1 == "" || s2 == "" {
		return 0
	}

	matchDistance := max(len(s1), len(s2))/2 - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	s1Matches := make([]bool, len(s1))
	s2Matches := make([]bool, len(s2))

	matches := 0
	transpositions := 0

	for i := range s1 {
		start := max(0, i-matchDistance)
		end := min(i+matchDistance+1, len(s2))
		for j := start; j < end; j++ {
			if s2Matches[j] || s1[i] != s2[j] {
				continue
			}
			s1Matches[i] = true
			s2Matches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	k := 0
	for i := range s1 {
		if !s1Matches[i] {
			continue
		}
		for ; !s2Matches[k]; k++ {
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}

	transpositions /= 2

	jaro := (float64(matches)/float64(len(s1)) + float64(matches)/float64(len(s2)) + float64(matches-transpositions)/float64(matches)) / 3

	prefix := 0
	for i := 0; i < min(4, min(len(s1), len(s2))); i++ {
		if s1[i] == s2[i] {
			prefix++
		} else {
			break
		}
	}

	return jaro + float64(prefix)*0.1*(1-jaro)
}

// TokenSortRatio is the order-independent comparison used for place names:
// lowercase, split on whitespace, sort tokens, rejoin, then Jaro-Winkler.
// Symmetric by construction.
func TokenSortRatio(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return 0
	}
	return JaroWinkler(tokenSort(s1), tokenSort(s2))
}

func tokenSort(s string) string {
	tokens := strings.Fields(strings.ToLower(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Levenshtein returns a normalized edit-distance similarity.
func Levenshtein(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		if s1 == s2 {
			return 1
		}
		return 0
	}
	maxLen := max(len(s1), len(s2))
	return 1 - float64(levenshteinDistance(s1, s2))/float64(maxLen)
}

func levenshteinDistance(s1, s2 string) int {
	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}
