// Package dashboard derives volume and timing summaries from a request
// snapshot. All computations are pure; callers re-run them whenever the
// underlying snapshot changes.
package dashboard

import (
	"sort"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

const recentRequestLimit = 5

// DurationSummary reports an averaged elapsed duration. Estimated is set
// when the authoritative transition timestamp was not available and the
// figure was derived from a substitute; consumers must not present an
// estimated figure as measured.
type DurationSummary struct {
	AverageHours float64 `json:"averageHours"`
	SampleCount  int     `json:"sampleCount"`
	Estimated    bool    `json:"estimated"`
}

// Stats is the dashboard summary shape shared by the engine and the
// authority's stats endpoints.
type Stats struct {
	TotalRequests        int                          `json:"totalRequests"`
	OpenRequests         int                          `json:"openRequests"`
	ResolvedRequests     int                          `json:"resolvedRequests"`
	ResolutionRate       float64                      `json:"resolutionRate"`
	RequestsByStatus     map[domain.RequestStatus]int `json:"requestsByStatus"`
	RequestsByDepartment map[domain.Department]int    `json:"requestsByDepartment"`
	RequestsByPriority   map[domain.Priority]int      `json:"requestsByPriority"`
	ResponseTime         DurationSummary              `json:"responseTime"`
	ResolutionTime       DurationSummary              `json:"resolutionTime"`
	RecentRequests       []domain.Request             `json:"recentRequests"`
}

// Compute derives the full summary from a request snapshot. Rates are
// percentages; an empty snapshot yields 0, never NaN.
func Compute(requests []domain.Request) Stats {
	stats := Stats{
		RequestsByStatus:     emptyStatusCounts(),
		RequestsByDepartment: emptyDepartmentCounts(),
		RequestsByPriority:   emptyPriorityCounts(),
	}

	for i := range requests {
		req := &requests[i]
		stats.TotalRequests++
		stats.RequestsByStatus[req.Status]++
		stats.RequestsByDepartment[req.Department]++
		stats.RequestsByPriority[req.Priority]++
		if req.Status.Open() {
			stats.OpenRequests++
		}
		if req.Status == domain.StatusResolved {
			stats.ResolvedRequests++
		}
	}

	if stats.TotalRequests > 0 {
		stats.ResolutionRate = float64(stats.ResolvedRequests) / float64(stats.TotalRequests) * 100
	}

	stats.ResponseTime = responseTimeSummary(requests)
	stats.ResolutionTime = resolutionTimeSummary(requests)
	stats.RecentRequests = recentRequests(requests)
	return stats
}

// responseTimeSummary measures creation to first reply by someone other
// than the request owner. Comment timestamps are authoritative, so this
// figure is measured, not estimated.
func responseTimeSummary(requests []domain.Request) DurationSummary {
	var total time.Duration
	count := 0
	for i := range requests {
		req := &requests[i]
		for j := range req.Comments {
			comment := &req.Comments[j]
			if comment.UserID == req.UserID {
				continue
			}
			total += comment.CreatedAt.Sub(req.CreatedAt)
			count++
			break
		}
	}
	if count == 0 {
		return DurationSummary{}
	}
	return DurationSummary{
		AverageHours: (total / time.Duration(count)).Hours(),
		SampleCount:  count,
	}
}

// resolutionTimeSummary substitutes the last-update timestamp for the
// resolve transition, which the authority does not expose; the result is
// therefore flagged as estimated.
func resolutionTimeSummary(requests []domain.Request) DurationSummary {
	var total time.Duration
	count := 0
	for i := range requests {
		req := &requests[i]
		if req.Status != domain.StatusResolved {
			continue
		}
		total += req.UpdatedAt.Sub(req.CreatedAt)
		count++
	}
	if count == 0 {
		return DurationSummary{}
	}
	return DurationSummary{
		AverageHours: (total / time.Duration(count)).Hours(),
		SampleCount:  count,
		Estimated:    true,
	}
}

func recentRequests(requests []domain.Request) []domain.Request {
	sorted := make([]domain.Request, len(requests))
	copy(sorted, requests)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > recentRequestLimit {
		sorted = sorted[:recentRequestLimit]
	}
	return sorted
}

func emptyStatusCounts() map[domain.RequestStatus]int {
	return map[domain.RequestStatus]int{
		domain.StatusNew:        0,
		domain.StatusInProgress: 0,
		domain.StatusResolved:   0,
		domain.StatusRejected:   0,
	}
}

func emptyDepartmentCounts() map[domain.Department]int {
	counts := make(map[domain.Department]int, len(domain.Departments()))
	for _, dept := range domain.Departments() {
		counts[dept] = 0
	}
	return counts
}

func emptyPriorityCounts() map[domain.Priority]int {
	counts := make(map[domain.Priority]int, 5)
	for p := domain.PriorityLow; p <= domain.PriorityEmergency; p++ {
		counts[p] = 0
	}
	return counts
}
