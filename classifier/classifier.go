// Package classifier scores articles for relevance to a free-text criterion.
package classifier

import (
	"context"
	"errors"

	"newsagent/types"
)

// ErrNoCriteria is returned when classification is requested without a criterion.
var ErrNoCriteria = errors.New("selection criteria not provided")

// Result is a relevance verdict for one article.
type Result struct {
	Score    float64 `json:"score"`
	Relevant bool    `json:"relevant"`
	Reason   string  `json:"reason"`
}

// Classifier scores one article against a criterion.
type Classifier interface {
	Classify(ctx context.Context, article *types.Article, criteria string) (Result, error)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
