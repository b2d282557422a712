package takeoff

import (
	"math"
	"strings"
	"unicode"

	"planbid/internal/domain"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "and": true, "to": true,
	"for": true, "with": true, "in": true, "at": true, "on": true, "per": true,
}

// normalizeForMatch lowercases and replaces punctuation with spaces.
func normalizeForMatch(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, t := range strings.Fields(normalizeForMatch(s)) {
		if !stopwords[t] {
			set[t] = true
		}
	}
	return set
}

// TokenJaccard is |A∩B| / |A∪B| over word tokens, ignoring stopwords.
func TokenJaccard(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	return float64(inter) / float64(len(ta)+len(tb)-inter)
}

func bigrams(s string) map[string]int {
	r := []rune(strings.ReplaceAll(normalizeForMatch(s), " ", ""))
	out := map[string]int{}
	for i := 0; i+1 < len(r); i++ {
		out[string(r[i:i+2])]++
	}
	return out
}

// BigramDice is the Sørensen-Dice coefficient over character bigrams.
func BigramDice(a, b string) float64 {
	ba, bb := bigrams(a), bigrams(b)
	na, nb := 0, 0
	for _, c := range ba {
		na += c
	}
	for _, c := range bb {
		nb += c
	}
	if na == 0 || nb == 0 {
		return 0
	}
	inter := 0
	for g, ca := range ba {
		if cb, ok := bb[g]; ok {
			inter += min(ca, cb)
		}
	}
	return 2 * float64(inter) / float64(na+nb)
}

// NameSimilarity scores two labels in [0,1] as the larger of token Jaccard
// and bigram Dice, so both reordered words and small spelling variants match.
func NameSimilarity(a, b string) float64 {
	if normalizeForMatch(a) == normalizeForMatch(b) && strings.TrimSpace(a) != "" {
		return 1
	}
	return math.Max(TokenJaccard(a, b), BigramDice(a, b))
}

// itemSimilarity compares names, and names with descriptions appended.
func itemSimilarity(a, b domain.TakeoffItem) float64 {
	s := NameSimilarity(a.Name, b.Name)
	if a.Description != "" || b.Description != "" {
		s = math.Max(s, NameSimilarity(a.Name+" "+a.Description, b.Name+" "+b.Description))
	}
	return s
}

// IoU is the intersection-over-union of two boxes on the same page.
func IoU(a, b domain.BoundingBox) float64 {
	x1, y1 := math.Max(a.X, b.X), math.Max(a.Y, b.Y)
	x2, y2 := math.Min(a.X+a.Width, b.X+b.Width), math.Min(a.Y+a.Height, b.Y+b.Height)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	inter := (x2 - x1) * (y2 - y1)
	union := a.Width*a.Height + b.Width*b.Height - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// CenterDistance is the Euclidean distance between box centers in page units.
func CenterDistance(a, b domain.BoundingBox) float64 {
	ax, ay := a.Center()
	bx, by := b.Center()
	return math.Hypot(ax-bx, ay-by)
}
