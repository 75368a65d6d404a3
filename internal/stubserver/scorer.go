package stubserver

import (
	"math"
	"strings"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// The stub scorer is a small lexicon model: enough signal for development
// and tests, no substitute for the real scoring service.
var positiveWords = map[string]struct{}{
	"good": {}, "great": {}, "excellent": {}, "fast": {}, "helpful": {},
	"resolved": {}, "thanks": {}, "thank": {}, "happy": {}, "perfect": {},
	"working": {}, "fixed": {}, "friendly": {}, "quick": {},
}

var negativeWords = map[string]struct{}{
	"bad": {}, "terrible": {}, "slow": {}, "broken": {}, "outage": {},
	"angry": {}, "unacceptable": {}, "waiting": {}, "frustrated": {},
	"useless": {}, "worst": {}, "down": {}, "failed": {}, "poor": {},
}

// scoreText derives a 1..5 score from lexicon hits. Confidence grows
// with hit density and is capped below certainty; keywords are the
// matched lexicon words, lowercased, in order of appearance.
func scoreText(text string) *domain.SentimentAnnotation {
	words := strings.Fields(strings.ToLower(text))
	positives, negatives := 0, 0
	keywords := make([]string, 0, 4)
	seen := make(map[string]struct{})

	for _, raw := range words {
		word := strings.Trim(raw, ".,!?;:()\"'")
		_, isPositive := positiveWords[word]
		_, isNegative := negativeWords[word]
		if !isPositive && !isNegative {
			continue
		}
		if isPositive {
			positives++
		} else {
			negatives++
		}
		if _, dup := seen[word]; !dup {
			seen[word] = struct{}{}
			keywords = append(keywords, word)
		}
	}

	hits := positives + negatives
	score := domain.SentimentNeutral
	confidence := 0.3
	if hits > 0 {
		balance := float64(positives-negatives) / float64(hits)
		score = domain.SentimentScore(3 + int(math.Round(balance*2)))
		confidence = math.Min(0.95, 0.4+0.1*float64(hits))
	}

	return &domain.SentimentAnnotation{
		Score:      score,
		Confidence: confidence,
		Keywords:   keywords,
		Timestamp:  time.Now().UTC(),
	}
}

// rollupSentiment summarizes a request's annotated end-user comments
// into the request-level overall sentiment. Returns nil when nothing
// contributes.
func rollupSentiment(request *domain.Request) *domain.SentimentAnnotation {
	var scoreSum, count int
	var confidenceSum float64
	keywords := make([]string, 0, 8)
	seen := make(map[string]struct{})

	for i := range request.Comments {
		comment := &request.Comments[i]
		if comment.Sentiment == nil || comment.AuthorRole() != domain.RoleUser {
			continue
		}
		scoreSum += int(comment.Sentiment.Score)
		confidenceSum += comment.Sentiment.Confidence
		count++
		for _, raw := range comment.Sentiment.Keywords {
			word := strings.ToLower(raw)
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			keywords = append(keywords, word)
		}
	}
	if count == 0 {
		return nil
	}
	if len(keywords) > 10 {
		keywords = keywords[:10]
	}
	return &domain.SentimentAnnotation{
		Score:      domain.SentimentScore(int(math.Round(float64(scoreSum) / float64(count)))),
		Confidence: confidenceSum / float64(count),
		Keywords:   keywords,
		Timestamp:  time.Now().UTC(),
	}
}
