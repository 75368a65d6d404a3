package stubserver

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/pkg/apperrors"
)

// account pairs the public user entity with its password hash.
type account struct {
	user         domain.User
	passwordHash string
}

// memoryStore backs the stub authority. Everything lives in process; the
// stub exists for development and tests, not production.
type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]*account
	requests map[string]*domain.Request
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts: make(map[string]*account),
		requests: make(map[string]*domain.Request),
	}
}

func (s *memoryStore) createUser(user domain.User, passwordHash string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.user.Email == user.Email {
			return nil, apperrors.NewConflict("email already registered", nil)
		}
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.accounts[user.ID] = &account{user: user, passwordHash: passwordHash}
	copied := user
	return &copied, nil
}

func (s *memoryStore) userByEmail(email string) (*domain.User, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.user.Email == email {
			user := acct.user
			return &user, acct.passwordHash, nil
		}
	}
	return nil, "", apperrors.NewNotFound("user", map[string]any{"email": email})
}

func (s *memoryStore) userByID(id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	user := acct.user
	return &user, nil
}

func (s *memoryStore) listUsers() []domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]domain.User, 0, len(s.accounts))
	for _, acct := range s.accounts {
		users = append(users, acct.user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users
}

func (s *memoryStore) updateUser(id string, apply func(*domain.User)) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	apply(&acct.user)
	acct.user.UpdatedAt = time.Now().UTC()
	user := acct.user
	return &user, nil
}

func (s *memoryStore) deleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	delete(s.accounts, id)
	return nil
}

func (s *memoryStore) createRequest(request domain.Request) *domain.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	request.ID = uuid.NewString()
	request.Status = domain.StatusNew
	request.CreatedAt = now
	request.UpdatedAt = now
	request.User = s.userRefLocked(request.UserID)
	s.requests[request.ID] = &request
	return s.copyRequestLocked(&request)
}

func (s *memoryStore) requestByID(id string) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, apperrors.NewNotFound("request", map[string]any{"id": id})
	}
	return s.copyRequestLocked(request), nil
}

// requestFilter narrows listings; nil fields match everything.
type requestFilter struct {
	ownerID    *string
	assigneeID *string
}

func (s *memoryStore) listRequests(filter requestFilter) []domain.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]domain.Request, 0, len(s.requests))
	for _, request := range s.requests {
		if filter.ownerID != nil && request.UserID != *filter.ownerID {
			continue
		}
		if filter.assigneeID != nil {
			if request.AssignedTo == nil || *request.AssignedTo != *filter.assigneeID {
				continue
			}
		}
		result = append(result, *s.copyRequestLocked(request))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

func (s *memoryStore) updateRequest(id string, apply func(*domain.Request)) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return nil, apperrors.NewNotFound("request", map[string]any{"id": id})
	}
	apply(request)
	request.UpdatedAt = time.Now().UTC()
	if request.AssignedTo != nil {
		request.Assignee = s.userRefLocked(*request.AssignedTo)
	} else {
		request.Assignee = nil
	}
	return s.copyRequestLocked(request), nil
}

func (s *memoryStore) deleteRequest(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return apperrors.NewNotFound("request", map[string]any{"id": id})
	}
	delete(s.requests, id)
	return nil
}

func (s *memoryStore) addComment(requestID, authorID, content string, sentiment *domain.SentimentAnnotation) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[requestID]
	if !ok {
		return nil, apperrors.NewNotFound("request", map[string]any{"id": requestID})
	}
	comment := domain.Comment{
		ID:        uuid.NewString(),
		RequestID: requestID,
		UserID:    authorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		User:      s.userRefLocked(authorID),
		Sentiment: sentiment,
	}
	request.Comments = append(request.Comments, comment)
	copied := comment
	return &copied, nil
}

func (s *memoryStore) setOverallSentiment(requestID string, rollup *domain.SentimentAnnotation) (*domain.SentimentAnnotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[requestID]
	if !ok {
		return nil, apperrors.NewNotFound("request", map[string]any{"id": requestID})
	}
	request.OverallSentiment = rollup
	return rollup, nil
}

func (s *memoryStore) copyRequestLocked(request *domain.Request) *domain.Request {
	copied := *request
	copied.Comments = make([]domain.Comment, len(request.Comments))
	copy(copied.Comments, request.Comments)
	copied.User = s.userRefLocked(request.UserID)
	if request.AssignedTo != nil {
		copied.Assignee = s.userRefLocked(*request.AssignedTo)
	}
	return &copied
}

func (s *memoryStore) userRefLocked(id string) *domain.UserRef {
	acct, ok := s.accounts[id]
	if !ok {
		return nil
	}
	return &domain.UserRef{
		ID:        acct.user.ID,
		FirstName: acct.user.FirstName,
		LastName:  acct.user.LastName,
		Email:     acct.user.Email,
		Role:      acct.user.Role,
	}
}
