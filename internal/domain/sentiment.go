package domain

import "time"

// SentimentScore is an ordinal valence scale: 1 is very negative, 5 is
// very positive.
type SentimentScore int

const (
	SentimentVeryNegative SentimentScore = 1
	SentimentNegative     SentimentScore = 2
	SentimentNeutral      SentimentScore = 3
	SentimentPositive     SentimentScore = 4
	SentimentVeryPositive SentimentScore = 5
)

// Valid reports whether the score is within the 1..5 scale.
func (s SentimentScore) Valid() bool {
	return s >= SentimentVeryNegative && s <= SentimentVeryPositive
}

// SentimentAnnotation is an externally computed description of the
// emotional valence of a text. Confidence is a probability-like weight in
// [0,1]; it must not be averaged without counting sources.
type SentimentAnnotation struct {
	Score      SentimentScore `json:"score"`
	Confidence float64        `json:"confidence"`
	Keywords   []string       `json:"keywords"`
	Timestamp  time.Time      `json:"timestamp"`
}
