// Package sentiment derives satisfaction statistics from a snapshot of
// requests and their annotated comments. All functions are pure and
// stateless; they read the snapshot and never mutate it.
package sentiment

import (
	"sort"
	"strings"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Comments score at or above this value count as positive; everything
// below counts as negative. There is no neutral bucket.
const positiveThreshold = domain.SentimentNeutral

const topKeywordLimit = 10

// Breakdown is the aggregate for one scope (global, department or single
// request). Only annotated end-user comments contribute to the buckets;
// technician and administrator commentary is deliberately excluded from
// customer-sentiment statistics. Unannotated comments are excluded from
// the denominator, not treated as neutral.
type Breakdown struct {
	Positive          int      `json:"positive"`
	Negative          int      `json:"negative"`
	Total             int      `json:"total"`
	PositivePercent   float64  `json:"positivePercent"`
	NegativePercent   float64  `json:"negativePercent"`
	AverageConfidence float64  `json:"averageConfidence"`
	TopKeywords       []string `json:"topKeywords"`
}

// DepartmentBreakdown extends Breakdown with per-department request
// volume figures.
type DepartmentBreakdown struct {
	Department domain.Department `json:"department"`
	Breakdown
	RequestCount   int `json:"requestCount"`
	ResolvedCount  int `json:"resolvedCount"`
	CommenterCount int `json:"commenterCount"`
}

// Aggregate computes the breakdown across every request in the snapshot.
func Aggregate(requests []domain.Request) Breakdown {
	acc := newAccumulator()
	for i := range requests {
		acc.addRequest(&requests[i])
	}
	return acc.breakdown()
}

// ForRequest computes the breakdown for a single request.
func ForRequest(request *domain.Request) Breakdown {
	acc := newAccumulator()
	acc.addRequest(request)
	return acc.breakdown()
}

// ByDepartment repeats the aggregation restricted to each department
// present in the snapshot, in the fixed enumeration order, and tracks
// request counts, resolved counts and the number of distinct comment
// authors per department.
func ByDepartment(requests []domain.Request) []DepartmentBreakdown {
	type deptState struct {
		acc        *accumulator
		requests   int
		resolved   int
		commenters map[string]struct{}
	}

	states := make(map[domain.Department]*deptState)
	for i := range requests {
		req := &requests[i]
		state := states[req.Department]
		if state == nil {
			state = &deptState{acc: newAccumulator(), commenters: make(map[string]struct{})}
			states[req.Department] = state
		}
		state.acc.addRequest(req)
		state.requests++
		if req.Status == domain.StatusResolved {
			state.resolved++
		}
		for j := range req.Comments {
			state.commenters[req.Comments[j].UserID] = struct{}{}
		}
	}

	result := make([]DepartmentBreakdown, 0, len(states))
	for _, dept := range domain.Departments() {
		state, ok := states[dept]
		if !ok {
			continue
		}
		result = append(result, DepartmentBreakdown{
			Department:     dept,
			Breakdown:      state.acc.breakdown(),
			RequestCount:   state.requests,
			ResolvedCount:  state.resolved,
			CommenterCount: len(state.commenters),
		})
	}
	return result
}

type accumulator struct {
	positive        int
	negative        int
	confidenceSum   float64
	confidenceCount int
	keywords        *keywordCounter
}

func newAccumulator() *accumulator {
	return &accumulator{keywords: newKeywordCounter()}
}

func (a *accumulator) addRequest(request *domain.Request) {
	for i := range request.Comments {
		a.addComment(&request.Comments[i])
	}
	// The rollup is a derived summary, not a fresh observation: it
	// contributes to the confidence average and keyword set but is never
	// double-counted into the buckets.
	if request.OverallSentiment != nil {
		a.addConfidenceAndKeywords(request.OverallSentiment)
	}
}

func (a *accumulator) addComment(comment *domain.Comment) {
	if comment.Sentiment == nil || comment.AuthorRole() != domain.RoleUser {
		return
	}
	if comment.Sentiment.Score >= positiveThreshold {
		a.positive++
	} else {
		a.negative++
	}
	a.addConfidenceAndKeywords(comment.Sentiment)
}

func (a *accumulator) addConfidenceAndKeywords(annotation *domain.SentimentAnnotation) {
	a.confidenceSum += annotation.Confidence
	a.confidenceCount++
	a.keywords.add(annotation.Keywords)
}

func (a *accumulator) breakdown() Breakdown {
	b := Breakdown{
		Positive:    a.positive,
		Negative:    a.negative,
		Total:       a.positive + a.negative,
		TopKeywords: a.keywords.top(topKeywordLimit),
	}
	if b.Total > 0 {
		b.PositivePercent = float64(b.Positive) / float64(b.Total) * 100
		b.NegativePercent = float64(b.Negative) / float64(b.Total) * 100
	}
	if a.confidenceCount > 0 {
		b.AverageConfidence = a.confidenceSum / float64(a.confidenceCount)
	}
	return b
}

// keywordCounter counts lowercase keyword occurrences across annotations
// and remembers first-seen order for stable tie-breaking.
type keywordCounter struct {
	counts    map[string]int
	firstSeen map[string]int
	next      int
}

func newKeywordCounter() *keywordCounter {
	return &keywordCounter{
		counts:    make(map[string]int),
		firstSeen: make(map[string]int),
	}
}

func (k *keywordCounter) add(keywords []string) {
	for _, raw := range keywords {
		word := strings.ToLower(strings.TrimSpace(raw))
		if word == "" {
			continue
		}
		if _, seen := k.counts[word]; !seen {
			k.firstSeen[word] = k.next
			k.next++
		}
		k.counts[word]++
	}
}

// top returns at most n distinct keywords ranked by descending frequency,
// ties broken by first-seen order.
func (k *keywordCounter) top(n int) []string {
	words := make([]string, 0, len(k.counts))
	for word := range k.counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if k.counts[words[i]] != k.counts[words[j]] {
			return k.counts[words[i]] > k.counts[words[j]]
		}
		return k.firstSeen[words[i]] < k.firstSeen[words[j]]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}
