package domain

import "time"

// RequestStatus enumerates lifecycle states for support requests.
type RequestStatus string

const (
	StatusNew        RequestStatus = "new"
	StatusInProgress RequestStatus = "in_progress"
	StatusResolved   RequestStatus = "resolved"
	StatusRejected   RequestStatus = "rejected"
)

// Valid reports whether the status is a known member of the enumeration.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusResolved, StatusRejected:
		return true
	default:
		return false
	}
}

// Open reports whether the request still counts toward the open backlog.
func (s RequestStatus) Open() bool {
	return s == StatusNew || s == StatusInProgress
}

// Department is the fixed organizational routing enumeration.
type Department string

const (
	DepartmentIT              Department = "it"
	DepartmentHR              Department = "hr"
	DepartmentFinance         Department = "finance"
	DepartmentOperations      Department = "operations"
	DepartmentCustomerService Department = "customer_service"
)

// Departments lists every department in a stable order.
func Departments() []Department {
	return []Department{
		DepartmentIT,
		DepartmentHR,
		DepartmentFinance,
		DepartmentOperations,
		DepartmentCustomerService,
	}
}

// Valid reports whether the department is a known member of the enumeration.
func (d Department) Valid() bool {
	switch d {
	case DepartmentIT, DepartmentHR, DepartmentFinance, DepartmentOperations, DepartmentCustomerService:
		return true
	default:
		return false
	}
}

// Priority is an ordered urgency scale from 1 (low) to 5 (emergency).
type Priority int

const (
	PriorityLow       Priority = 1
	PriorityMedium    Priority = 2
	PriorityHigh      Priority = 3
	PriorityUrgent    Priority = 4
	PriorityEmergency Priority = 5
)

// Valid reports whether the priority is within the 1..5 scale.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityEmergency
}

// Request is the aggregate for a support ticket owned by an end-user.
type Request struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      RequestStatus `json:"status"`
	Priority    Priority      `json:"priority"`
	Department  Department    `json:"department"`
	UserID      string        `json:"userId"`
	AssignedTo  *string       `json:"assignedTo,omitempty"`

	// Alternate creation schema carried by some deployments.
	ServiceType   string `json:"serviceType,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	Location      string `json:"location,omitempty"`
	IssueType     string `json:"issueType,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	User     *UserRef `json:"user,omitempty"`
	Assignee *UserRef `json:"assignee,omitempty"`

	// Comments are append-only; insertion order is chronological.
	Comments []Comment `json:"comments,omitempty"`

	// OverallSentiment is the request-level rollup, distinct from any
	// single comment's annotation.
	OverallSentiment *SentimentAnnotation `json:"overallSentiment,omitempty"`
}

// UserRef is the embedded author/assignee snapshot the authority attaches
// to requests and comments.
type UserRef struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	Role      Role   `json:"role,omitempty"`
}
