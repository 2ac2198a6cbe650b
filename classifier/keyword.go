package classifier

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"newsagent/types"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "about": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true, "it": true,
	"news": true, "of": true, "on": true, "or": true, "the": true, "to": true, "with": true,
}

// KeywordClassifier scores an article by the share of criterion terms found in its title and content.
// A term in the title counts fully; a term found only in the content counts half.
type KeywordClassifier struct {
	Threshold float64
}

// NewKeywordClassifier returns a keyword classifier marking scores >= threshold as relevant.
func NewKeywordClassifier(threshold float64) *KeywordClassifier {
	return &KeywordClassifier{Threshold: threshold}
}

func (k *KeywordClassifier) Classify(ctx context.Context, article *types.Article, criteria string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	terms := tokenize(criteria)
	if len(terms) == 0 {
		return Result{}, ErrNoCriteria
	}

	title := tokenSet(article.Title)
	content := tokenSet(article.Content)

	var hits float64
	var matched []string
	for _, term := range terms {
		switch {
		case title[term]:
			hits++
			matched = append(matched, term)
		case content[term]:
			hits += 0.5
			matched = append(matched, term)
		}
	}

	score := clamp01(hits / float64(len(terms)))
	res := Result{Score: score, Relevant: score >= k.Threshold}
	if len(matched) == 0 {
		res.Reason = "No criterion terms found in the article"
	} else {
		res.Reason = fmt.Sprintf("Matched %d of %d criterion terms: %s", len(matched), len(terms), strings.Join(matched, ", "))
	}
	return res, nil
}

// tokenize returns the distinct lowercase words of s, without stop words, in first-seen order.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 2 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokenize(s) {
		set[t] = true
	}
	return set
}
