package domain

import "time"

// Comment is a timestamped message attached to a request. Comments are
// append-only; no edit or delete operation exists.
type Comment struct {
	ID        string               `json:"id"`
	RequestID string               `json:"requestId"`
	UserID    string               `json:"userId"`
	Content   string               `json:"content"`
	CreatedAt time.Time            `json:"createdAt"`
	User      *UserRef             `json:"user,omitempty"`
	Sentiment *SentimentAnnotation `json:"sentiment,omitempty"`
}

// AuthorRole returns the role of the comment author when the authority
// attached an author snapshot, or an empty role otherwise.
func (c Comment) AuthorRole() Role {
	if c.User == nil {
		return ""
	}
	return c.User.Role
}
