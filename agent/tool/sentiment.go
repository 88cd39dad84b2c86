package tool

import (
	"context"
	"strings"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
)

const maxExemplars = 3

var positiveWords = []string{
	"amazing", "awesome", "best", "beautiful", "classy", "delicious",
	"excellent", "fantastic", "friendly", "great", "incredible", "love",
	"loved", "perfect", "solid", "thoughtful", "wonderful", "worth",
}

var negativeWords = []string{
	"awful", "bad", "cold", "dirty", "disappointing", "expensive",
	"horrible", "mediocre", "overpriced", "rude", "slow", "soggy",
	"terrible", "worst",
}

// sentimentTool aggregates review sentiment per entity with a small word
// lexicon. Ties and empty reviews score neutral.
type sentimentTool struct{}

func (t *sentimentTool) Name() contractx.ToolName {
	return contractx.ToolSentiment
}

func (t *sentimentTool) Invoke(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResponse, error) {
	refs, err := decodeRefs(req.EntityRefs)
	if err != nil {
		return contractx.ToolResponse{
			Error: err.Error(),
		}, nil
	}

	sentiments := make(map[string]contractx.SentimentInfo, len(refs.Entities))
	for _, ref := range refs.Entities {
		sentiments[ref.ID] = analyzeReviews(ref.Reviews)
	}

	return contractx.ToolResponse{
		Success:    true,
		Sentiments: sentiments,
		FullOutput: req.EntityRefs,
	}, nil
}

func analyzeReviews(reviews []string) contractx.SentimentInfo {
	info := contractx.SentimentInfo{
		TotalReviews: len(reviews),
		OverallLabel: "neutral",
	}

	for _, review := range reviews {
		switch scoreReview(review) {
		case 1:
			info.Positive++
			if len(info.Exemplars) < maxExemplars {
				info.Exemplars = append(info.Exemplars, review)
			}
		case -1:
			info.Negative++
			if len(info.Exemplars) < maxExemplars {
				info.Exemplars = append(info.Exemplars, review)
			}
		default:
			info.Neutral++
		}
	}

	switch {
	case info.Positive > info.Negative:
		info.OverallLabel = "positive"
	case info.Negative > info.Positive:
		info.OverallLabel = "negative"
	}
	return info
}

func scoreReview(review string) int {
	lower := strings.ToLower(review)
	score := 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score--
		}
	}
	switch {
	case score > 0:
		return 1
	case score < 0:
		return -1
	default:
		return 0
	}
}
