package similarity

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// Similarity calculates the similarity between two titles using Levenshtein
// distance over their normalized forms. Returns a value between 0.0
// (completely different) and 1.0 (identical).
//
// A title that is a substantial word-aligned suffix of the other, like
// "Disney's Aladdin" vs "Aladdin", scores high.
func Similarity(s1, s2 string) float64 {
	s1 = normalize(s1)
	s2 = normalize(s2)

	if s1 == s2 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}
	if score := suffixContainmentScore(s1, s2); score > 0 {
		return score
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := max(len([]rune(s1)), len([]rune(s2)))
	return 1.0 - float64(distance)/float64(maxLen)
}

// QueryScore rates how well a title answers a free-text search query.
// Exact matches rank first, then titles starting with the query, then
// titles containing it as whole words, then plain edit similarity.
func QueryScore(query, title string) float64 {
	q := normalize(query)
	t := normalize(title)
	if q == "" || t == "" {
		return 0
	}
	switch {
	case q == t:
		return 1.0
	case strings.HasPrefix(t, q+" "):
		return 0.95
	case strings.Contains(" "+t+" ", " "+q+" "):
		return 0.85
	}
	return 0.8 * Similarity(q, t)
}

func suffixContainmentScore(s1, s2 string) float64 {
	longer, shorter := s1, s2
	if len(s1) < len(s2) {
		longer, shorter = s2, s1
	}
	if !strings.HasSuffix(longer, shorter) {
		return 0
	}
	prefixLen := len(longer) - len(shorter)
	if prefixLen != 0 && longer[prefixLen-1] != ' ' {
		return 0
	}
	// 60% containment -> 0.96, 100% -> 1.0
	ratio := float64(len(shorter)) / float64(len(longer))
	if ratio < 0.6 {
		return 0
	}
	return 0.90 + ratio*0.10
}

// normalize folds a title to lowercase ASCII words. "&" reads as "and" and
// dots, dashes and underscores separate words.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "&", " and ")
	s = unidecode.Unidecode(s)

	var result strings.Builder
	result.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-' || r == '_':
			result.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}

func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}
