// Package authority implements the HTTP client for the remote service of
// record for users, requests, comments and sentiment scoring.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spec-kit/support-desk/internal/dashboard"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/pkg/apperrors"
)

// TokenFunc supplies the current bearer token, or an empty string when the
// session is unauthenticated.
type TokenFunc func() string

// Client issues authenticated JSON operations against the remote
// authority. All methods map failures into the apperrors taxonomy; a
// missing entity (NOT_FOUND) is always distinct from a transport failure
// (NETWORK_FAILURE).
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenFunc
}

// NewClient builds a client rooted at baseURL. token may be nil for
// anonymous use; authenticated endpoints will then fail server-side.
func NewClient(baseURL string, timeout time.Duration, token TokenFunc) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		token:   token,
	}
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// AuthResult is returned by login and register.
type AuthResult struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// RequestDraft is the creation payload. Either the generic fields or the
// alternate schema variant (service type, account number, location, issue
// type) may be supplied; the authority validates presence.
type RequestDraft struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Department    domain.Department `json:"department"`
	Priority      domain.Priority   `json:"priority"`
	ServiceType   string            `json:"serviceType,omitempty"`
	AccountNumber string            `json:"accountNumber,omitempty"`
	Location      string            `json:"location,omitempty"`
	IssueType     string            `json:"issueType,omitempty"`
}

// RequestPatch is a partial update; nil fields are left untouched.
type RequestPatch struct {
	Title       *string               `json:"title,omitempty"`
	Description *string               `json:"description,omitempty"`
	Status      *domain.RequestStatus `json:"status,omitempty"`
	AssignedTo  *string               `json:"assignedTo,omitempty"`
	Priority    *domain.Priority      `json:"priority,omitempty"`
	Department  *domain.Department    `json:"department,omitempty"`
}

// Login exchanges credentials for a bearer token and the account entity.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var result AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/login", Credentials{Email: email, Password: password}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates an end-user account and returns a fresh session token.
func (c *Client) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", input, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Me resolves the current bearer token to its account.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListRequests fetches every request visible to the caller.
func (c *Client) ListRequests(ctx context.Context) ([]domain.Request, error) {
	var requests []domain.Request
	if err := c.do(ctx, http.MethodGet, "/requests", nil, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// ListUserRequests fetches requests owned by the given user.
func (c *Client) ListUserRequests(ctx context.Context, userID string) ([]domain.Request, error) {
	var requests []domain.Request
	if err := c.do(ctx, http.MethodGet, "/users/"+userID+"/requests", nil, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// ListAssignedRequests fetches requests assigned to the given technician.
func (c *Client) ListAssignedRequests(ctx context.Context, userID string) ([]domain.Request, error) {
	var requests []domain.Request
	if err := c.do(ctx, http.MethodGet, "/requests/assigned/"+userID, nil, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// GetRequest fetches a single request with its comment thread.
func (c *Client) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	var request domain.Request
	if err := c.do(ctx, http.MethodGet, "/requests/"+id, nil, &request); err != nil {
		return nil, err
	}
	return &request, nil
}

// CreateRequest submits a draft and returns the created entity with
// server-assigned id and timestamps.
func (c *Client) CreateRequest(ctx context.Context, draft RequestDraft) (*domain.Request, error) {
	var request domain.Request
	if err := c.do(ctx, http.MethodPost, "/requests", draft, &request); err != nil {
		return nil, err
	}
	return &request, nil
}

// UpdateRequest applies a partial update and returns the updated entity.
func (c *Client) UpdateRequest(ctx context.Context, id string, patch RequestPatch) (*domain.Request, error) {
	var request domain.Request
	if err := c.do(ctx, http.MethodPut, "/requests/"+id, patch, &request); err != nil {
		return nil, err
	}
	return &request, nil
}

// DeleteRequest removes a request permanently.
func (c *Client) DeleteRequest(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/requests/"+id, nil, nil)
}

type addCommentPayload struct {
	Content   string                      `json:"content"`
	Sentiment *domain.SentimentAnnotation `json:"sentiment,omitempty"`
}

// AddComment persists a comment, optionally carrying an annotation the
// scorer already produced for it.
func (c *Client) AddComment(ctx context.Context, requestID, content string, sentiment *domain.SentimentAnnotation) (*domain.Comment, error) {
	var comment domain.Comment
	payload := addCommentPayload{Content: content, Sentiment: sentiment}
	if err := c.do(ctx, http.MethodPost, "/requests/"+requestID+"/comments", payload, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

type analyzePayload struct {
	Text string `json:"text"`
}

// AnalyzeSentiment submits free text to the external scorer and returns
// its annotation.
func (c *Client) AnalyzeSentiment(ctx context.Context, text string) (*domain.SentimentAnnotation, error) {
	var annotation domain.SentimentAnnotation
	if err := c.do(ctx, http.MethodPost, "/analyze-sentiment", analyzePayload{Text: text}, &annotation); err != nil {
		return nil, err
	}
	return &annotation, nil
}

// RefreshOverallSentiment asks the authority to recompute the
// request-level sentiment rollup.
func (c *Client) RefreshOverallSentiment(ctx context.Context, requestID string) (*domain.SentimentAnnotation, error) {
	var annotation domain.SentimentAnnotation
	if err := c.do(ctx, http.MethodPost, "/requests/"+requestID+"/analyze-sentiment", nil, &annotation); err != nil {
		return nil, err
	}
	return &annotation, nil
}

// ListUsers fetches every account (administrative).
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser fetches a single account.
func (c *Client) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, "/users/"+id, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DashboardStats fetches the global stats summary (administrative).
func (c *Client) DashboardStats(ctx context.Context) (*dashboard.Stats, error) {
	var stats dashboard.Stats
	if err := c.do(ctx, http.MethodGet, "/dashboard/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// UserDashboardStats fetches the per-user stats summary.
func (c *Client) UserDashboardStats(ctx context.Context, userID string) (*dashboard.Stats, error) {
	var stats dashboard.Stats
	if err := c.do(ctx, http.MethodGet, "/dashboard/users/"+userID+"/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewInternal(err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.NewInternal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.NewNetworkFailure(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(method, path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewNetworkFailure(fmt.Sprintf("decode %s %s response", method, path), err)
	}
	return nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) errorFromResponse(method, path string, resp *http.Response) error {
	message := fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode)
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed errorBody
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Error.Message != "" {
			message = parsed.Error.Message
		} else if parsed.Message != "" {
			message = parsed.Message
		}
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return apperrors.NewAuthenticationFailed(message)
	case http.StatusForbidden:
		return apperrors.NewForbidden(message)
	case http.StatusNotFound:
		return apperrors.New(apperrors.CodeNotFound, message, http.StatusNotFound, nil)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.NewValidationFailed(message, nil)
	default:
		return apperrors.NewConflict(message, map[string]any{"status": resp.StatusCode})
	}
}
