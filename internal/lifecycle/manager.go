// Package lifecycle owns the request/comment working set visible to the
// current session. Every mutation is reflected in the remote authority
// first and, on success, in the local cache atomically with respect to
// observers.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/authority"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/session"
	"github.com/spec-kit/support-desk/pkg/apperrors"
)

// Manager is the single source of truth for the cached request set and
// the currently viewed request. The cache always holds a complete fresh
// snapshot for the last list filter, never a merge across filters.
type Manager struct {
	mu        sync.Mutex
	client    *authority.Client
	session   *session.Session
	logger    *zap.Logger
	requests  []domain.Request
	current   *domain.Request
	lastError string
}

// Dependencies bundles collaborators for the manager.
type Dependencies struct {
	Session *session.Session
	Logger  *zap.Logger
}

// NewManager constructs the manager. The session gates every operation
// and supplies the authenticated authority client.
func NewManager(deps Dependencies) *Manager {
	return &Manager{
		client:  deps.Session.Client(),
		session: deps.Session,
		logger:  deps.Logger,
	}
}

// Snapshot returns a copy of the cached request set.
func (m *Manager) Snapshot() []domain.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make([]domain.Request, len(m.requests))
	copy(snapshot, m.requests)
	return snapshot
}

// Current returns a copy of the currently viewed request, or nil.
func (m *Manager) Current() *domain.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	current := *m.current
	return &current
}

// LastError returns the human-readable message of the most recent
// failure, or an empty string.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// ListAll replaces the cache with every request visible to the caller.
func (m *Manager) ListAll(ctx context.Context) ([]domain.Request, error) {
	return m.list(ctx, func() ([]domain.Request, error) {
		return m.client.ListRequests(ctx)
	})
}

// ListForUser replaces the cache with the given user's own requests.
func (m *Manager) ListForUser(ctx context.Context, userID string) ([]domain.Request, error) {
	return m.list(ctx, func() ([]domain.Request, error) {
		return m.client.ListUserRequests(ctx, userID)
	})
}

// ListAssignedTo replaces the cache with requests assigned to the given
// technician.
func (m *Manager) ListAssignedTo(ctx context.Context, userID string) ([]domain.Request, error) {
	return m.list(ctx, func() ([]domain.Request, error) {
		return m.client.ListAssignedRequests(ctx, userID)
	})
}

func (m *Manager) list(ctx context.Context, fetch func() ([]domain.Request, error)) ([]domain.Request, error) {
	if err := m.requireAuth(); err != nil {
		return nil, err
	}
	requests, err := fetch()
	if err != nil {
		return nil, m.record(err)
	}
	m.mu.Lock()
	m.requests = requests
	m.lastError = ""
	m.mu.Unlock()
	return m.Snapshot(), nil
}

// GetByID fetches a request with its comment thread and makes it the
// currently viewed request. An absent entity fails with NOT_FOUND,
// distinct from a transient NETWORK_FAILURE.
func (m *Manager) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	if err := m.requireAuth(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	request, err := m.client.GetRequest(ctx, id)
	if err != nil {
		return nil, m.record(err)
	}
	m.mu.Lock()
	m.current = request
	m.lastError = ""
	m.mu.Unlock()
	return m.Current(), nil
}

// Create submits a draft. Presence of required fields is checked here;
// deeper validation belongs to the authority. On success the created
// entity, carrying server-assigned id and timestamps, is appended to the
// cached list.
func (m *Manager) Create(ctx context.Context, draft authority.RequestDraft) (*domain.Request, error) {
	if err := m.requireAuth(); err != nil {
		return nil, err
	}
	if err := validateDraft(draft); err != nil {
		return nil, m.record(err)
	}
	created, err := m.client.CreateRequest(ctx, draft)
	if err != nil {
		return nil, m.record(err)
	}
	m.mu.Lock()
	m.requests = append(m.requests, *created)
	m.lastError = ""
	m.mu.Unlock()
	return created, nil
}

// UpdateFields applies a partial update. This is the single primitive
// beneath UpdateStatus and Assign. A response older than the cached entry
// indicates a concurrent update won the race; it is rejected with
// CONFLICT and the cache is left untouched.
func (m *Manager) UpdateFields(ctx context.Context, id string, patch authority.RequestPatch) (*domain.Request, error) {
	if err := m.requireAuth(); err != nil {
		return nil, err
	}
	updated, err := m.client.UpdateRequest(ctx, id, patch)
	if err != nil {
		return nil, m.record(err)
	}
	if err := m.applyUpdate(updated); err != nil {
		return nil, m.record(err)
	}
	return m.copyOf(updated), nil
}

// UpdateStatus moves a request to newStatus. Transitions are
// deliberately unrestricted: any status may move to any other.
func (m *Manager) UpdateStatus(ctx context.Context, id string, newStatus domain.RequestStatus) (*domain.Request, error) {
	if !newStatus.Valid() {
		return nil, m.record(apperrors.NewValidationFailed(fmt.Sprintf("unknown status %q", newStatus), nil))
	}
	return m.UpdateFields(ctx, id, authority.RequestPatch{Status: &newStatus})
}

// Assign routes a request to a technician. The target account's role is
// verified first: assignedTo must always reference a technician.
func (m *Manager) Assign(ctx context.Context, id, technicianID string) (*domain.Request, error) {
	if err := m.requireAuth(); err != nil {
		return nil, err
	}
	target, err := m.client.GetUser(ctx, technicianID)
	if err != nil {
		return nil, m.record(err)
	}
	switch target.Role {
	case domain.RoleTech:
		// assignable
	case domain.RoleUser, domain.RoleAdmin:
		return nil, m.record(apperrors.NewValidationFailed(
			fmt.Sprintf("assignee %s is not a technician", technicianID), nil))
	default:
		return nil, m.record(apperrors.NewInternal(fmt.Errorf("unknown role %q", target.Role)))
	}
	return m.UpdateFields(ctx, id, authority.RequestPatch{AssignedTo: &technicianID})
}

// AddComment scores the content, persists the annotated comment, then
// refreshes the request-level sentiment rollup. The steps are strictly
// sequential: a scorer failure persists nothing (fail-closed); a rollup
// failure after successful persistence retains the comment and leaves
// only the rollup stale.
func (m *Manager) AddComment(ctx context.Context, requestID, content string) (*domain.Comment, error) {
	if err := m.requireAuth(); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, m.record(apperrors.NewValidationFailed("comment content is required", nil))
	}

	annotation, err := m.client.AnalyzeSentiment(ctx, content)
	if err != nil {
		return nil, m.record(err)
	}

	comment, err := m.client.AddComment(ctx, requestID, content, annotation)
	if err != nil {
		return nil, m.record(err)
	}
	m.appendComment(requestID, comment)

	rollup, err := m.client.RefreshOverallSentiment(ctx, requestID)
	if err != nil {
		m.logger.Warn("sentiment rollup refresh failed; rollup is stale",
			zap.String("request_id", requestID), zap.Error(err))
	} else {
		m.applyRollup(requestID, rollup)
	}

	m.mu.Lock()
	m.lastError = ""
	m.mu.Unlock()
	return comment, nil
}

// Delete removes a request permanently. Administrative only; the removal
// is irreversible and takes immediate effect in the cache.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.requireAuth(); err != nil {
		return err
	}
	role, _ := m.session.Role()
	switch role {
	case domain.RoleAdmin:
		// permitted
	case domain.RoleUser, domain.RoleTech:
		return m.record(apperrors.NewForbidden("administrator role required"))
	default:
		return m.record(apperrors.NewInternal(fmt.Errorf("unknown role %q", role)))
	}

	if err := m.client.DeleteRequest(ctx, id); err != nil {
		return m.record(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.requests[:0]
	for _, req := range m.requests {
		if req.ID != id {
			kept = append(kept, req)
		}
	}
	m.requests = kept
	if m.current != nil && m.current.ID == id {
		m.current = nil
	}
	m.lastError = ""
	return nil
}

func (m *Manager) requireAuth() error {
	if !m.session.IsAuthenticated() {
		return m.record(apperrors.NewAuthenticationFailed("authentication required"))
	}
	return nil
}

// applyUpdate replaces the cached entry and, when it is the currently
// viewed request, that reference too. Update responses carry no comment
// thread, so the thread already loaded is retained.
func (m *Manager) applyUpdate(updated *domain.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.requests {
		if m.requests[i].ID != updated.ID {
			continue
		}
		if m.requests[i].UpdatedAt.After(updated.UpdatedAt) {
			return apperrors.NewConflict(
				fmt.Sprintf("request %s changed concurrently; refresh before updating", updated.ID), nil)
		}
		m.requests[i] = *updated
		break
	}
	if m.current != nil && m.current.ID == updated.ID {
		replacement := *updated
		if replacement.Comments == nil {
			replacement.Comments = m.current.Comments
		}
		if replacement.OverallSentiment == nil {
			replacement.OverallSentiment = m.current.OverallSentiment
		}
		m.current = &replacement
	}
	return nil
}

func (m *Manager) appendComment(requestID string, comment *domain.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.ID == requestID {
		m.current.Comments = append(m.current.Comments, *comment)
	}
	for i := range m.requests {
		if m.requests[i].ID == requestID {
			m.requests[i].Comments = append(m.requests[i].Comments, *comment)
			break
		}
	}
}

func (m *Manager) applyRollup(requestID string, rollup *domain.SentimentAnnotation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.ID == requestID {
		m.current.OverallSentiment = rollup
	}
	for i := range m.requests {
		if m.requests[i].ID == requestID {
			m.requests[i].OverallSentiment = rollup
			break
		}
	}
}

func (m *Manager) copyOf(request *domain.Request) *domain.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.ID == request.ID {
		current := *m.current
		return &current
	}
	copied := *request
	return &copied
}

func (m *Manager) record(err error) error {
	m.mu.Lock()
	m.lastError = apperrors.From(err).Message
	m.mu.Unlock()
	return err
}

func validateDraft(draft authority.RequestDraft) error {
	if draft.ServiceType != "" || draft.AccountNumber != "" || draft.IssueType != "" {
		missing := map[string]any{}
		if draft.ServiceType == "" {
			missing["serviceType"] = "required"
		}
		if draft.AccountNumber == "" {
			missing["accountNumber"] = "required"
		}
		if draft.Location == "" {
			missing["location"] = "required"
		}
		if draft.IssueType == "" {
			missing["issueType"] = "required"
		}
		if len(missing) > 0 {
			return apperrors.NewValidationFailed("incomplete service request", missing)
		}
		return nil
	}

	missing := map[string]any{}
	if draft.Title == "" {
		missing["title"] = "required"
	}
	if draft.Description == "" {
		missing["description"] = "required"
	}
	if !draft.Department.Valid() {
		missing["department"] = "required"
	}
	if !draft.Priority.Valid() {
		missing["priority"] = "required"
	}
	if len(missing) > 0 {
		return apperrors.NewValidationFailed("incomplete request", missing)
	}
	return nil
}
