package stubserver

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/dashboard"
	"github.com/spec-kit/support-desk/internal/domain"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	server, err := New(Config{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            4,
		SeedDemoData:          true,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("build server: %v", err)
	}
	return server
}

func apiRequest(t *testing.T, s *Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var payload *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(encoded)
	} else {
		payload = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api"+path, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.App.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func loginAs(t *testing.T, s *Server, email, password string) authResponse {
	t.Helper()
	resp := apiRequest(t, s, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", email, resp.StatusCode)
	}
	var auth authResponse
	decodeBody(t, resp, &auth)
	return auth
}

func createRequestAs(t *testing.T, s *Server, token, title string) domain.Request {
	t.Helper()
	resp := apiRequest(t, s, http.MethodPost, "/requests", token, map[string]any{
		"title":       title,
		"description": "description of " + title,
		"department":  domain.DepartmentIT,
		"priority":    int(domain.PriorityMedium),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create request: status %d", resp.StatusCode)
	}
	var created domain.Request
	decodeBody(t, resp, &created)
	return created
}

func TestLoginSeededAccounts(t *testing.T) {
	s := newTestServer(t)

	admin := loginAs(t, s, "admin@example.com", "admin123")
	if admin.Token == "" || admin.User.Role != domain.RoleAdmin {
		t.Errorf("unexpected admin login result: %+v", admin.User)
	}

	resp := apiRequest(t, s, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "admin@example.com", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", resp.StatusCode)
	}
	resp = apiRequest(t, s, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ghost@example.com", "password": "whatever",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unknown email: expected 401, got %d", resp.StatusCode)
	}
}

func TestRegisterCreatesEndUser(t *testing.T) {
	s := newTestServer(t)

	payload := map[string]string{
		"firstName": "New", "lastName": "Person",
		"email": "new@example.com", "password": "secret1",
	}
	resp := apiRequest(t, s, http.MethodPost, "/auth/register", "", payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	var auth authResponse
	decodeBody(t, resp, &auth)
	if auth.User.Role != domain.RoleUser {
		t.Errorf("registration must always produce an end user, got %q", auth.User.Role)
	}

	me := apiRequest(t, s, http.MethodGet, "/auth/me", auth.Token, nil)
	if me.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", me.StatusCode)
	}
	var current domain.User
	decodeBody(t, me, &current)
	if current.Email != "new@example.com" {
		t.Errorf("me returned the wrong account: %+v", current)
	}

	// Same email again conflicts.
	resp = apiRequest(t, s, http.MethodPost, "/auth/register", "", payload)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate email: expected 409, got %d", resp.StatusCode)
	}
}

func TestAuthenticateMiddleware(t *testing.T) {
	s := newTestServer(t)

	resp := apiRequest(t, s, http.MethodGet, "/requests", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing header: expected 401, got %d", resp.StatusCode)
	}
	resp = apiRequest(t, s, http.MethodGet, "/requests", "garbage-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("garbage token: expected 401, got %d", resp.StatusCode)
	}
}

func TestRequestVisibilityByRole(t *testing.T) {
	s := newTestServer(t)
	user := loginAs(t, s, "user@example.com", "user123")
	tech := loginAs(t, s, "tech@example.com", "tech123")

	mine := createRequestAs(t, s, user.Token, "user request")
	createRequestAs(t, s, tech.Token, "tech request")

	var visible []domain.Request
	resp := apiRequest(t, s, http.MethodGet, "/requests", user.Token, nil)
	decodeBody(t, resp, &visible)
	if len(visible) != 1 || visible[0].ID != mine.ID {
		t.Errorf("end user should see only own requests, got %d", len(visible))
	}

	resp = apiRequest(t, s, http.MethodGet, "/requests", tech.Token, nil)
	decodeBody(t, resp, &visible)
	if len(visible) != 2 {
		t.Errorf("technician should see all requests, got %d", len(visible))
	}

	// An end user cannot open someone else's request.
	other := createRequestAs(t, s, tech.Token, "private")
	resp = apiRequest(t, s, http.MethodGet, "/requests/"+other.ID, user.Token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign request: expected 403, got %d", resp.StatusCode)
	}
}

func TestUpdateFieldPermissions(t *testing.T) {
	s := newTestServer(t)
	user := loginAs(t, s, "user@example.com", "user123")
	tech := loginAs(t, s, "tech@example.com", "tech123")
	admin := loginAs(t, s, "admin@example.com", "admin123")

	created := createRequestAs(t, s, user.Token, "permissions probe")
	path := "/requests/" + created.ID

	// Owner edits title.
	resp := apiRequest(t, s, http.MethodPut, path, user.Token, map[string]string{"title": "renamed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner title update: expected 200, got %d", resp.StatusCode)
	}
	var updated domain.Request
	decodeBody(t, resp, &updated)
	if updated.Title != "renamed" {
		t.Errorf("title not updated: %q", updated.Title)
	}

	// Owner cannot move status; nothing applies.
	resp = apiRequest(t, s, http.MethodPut, path, user.Token, map[string]string{"status": "resolved"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("owner status update: expected 400, got %d", resp.StatusCode)
	}

	// Staff move status and assignee.
	resp = apiRequest(t, s, http.MethodPut, path, tech.Token, map[string]any{
		"status": domain.StatusInProgress, "assignedTo": tech.User.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tech status update: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &updated)
	if updated.Status != domain.StatusInProgress {
		t.Errorf("status not updated: %q", updated.Status)
	}
	if updated.Assignee == nil || updated.Assignee.ID != tech.User.ID {
		t.Errorf("assignee reference missing: %+v", updated.Assignee)
	}

	// Priority and department are administrator-only.
	resp = apiRequest(t, s, http.MethodPut, path, tech.Token, map[string]int{"priority": int(domain.PriorityEmergency)})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("tech priority update: expected 400, got %d", resp.StatusCode)
	}
	resp = apiRequest(t, s, http.MethodPut, path, admin.Token, map[string]any{
		"priority": int(domain.PriorityEmergency), "department": domain.DepartmentHR,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin priority update: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &updated)
	if updated.Priority != domain.PriorityEmergency || updated.Department != domain.DepartmentHR {
		t.Errorf("admin fields not updated: %+v", updated)
	}
}

func TestDeleteRequestAdminOnly(t *testing.T) {
	s := newTestServer(t)
	user := loginAs(t, s, "user@example.com", "user123")
	tech := loginAs(t, s, "tech@example.com", "tech123")
	admin := loginAs(t, s, "admin@example.com", "admin123")

	created := createRequestAs(t, s, user.Token, "doomed")
	path := "/requests/" + created.ID

	if resp := apiRequest(t, s, http.MethodDelete, path, tech.Token, nil); resp.StatusCode != http.StatusForbidden {
		t.Errorf("tech delete: expected 403, got %d", resp.StatusCode)
	}
	if resp := apiRequest(t, s, http.MethodDelete, path, admin.Token, nil); resp.StatusCode != http.StatusOK {
		t.Errorf("admin delete: expected 200, got %d", resp.StatusCode)
	}
	if resp := apiRequest(t, s, http.MethodGet, path, admin.Token, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("after delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestCommentPermissionsAndAuthorSnapshot(t *testing.T) {
	s := newTestServer(t)
	user := loginAs(t, s, "user@example.com", "user123")
	tech := loginAs(t, s, "tech@example.com", "tech123")

	created := createRequestAs(t, s, tech.Token, "tech owned")
	path := "/requests/" + created.ID + "/comments"

	// A stranger end user may not comment.
	resp := apiRequest(t, s, http.MethodPost, path, user.Token, map[string]string{"content": "hi"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("stranger comment: expected 403, got %d", resp.StatusCode)
	}

	resp = apiRequest(t, s, http.MethodPost, path, tech.Token, map[string]string{"content": "looking into it"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("owner comment: expected 201, got %d", resp.StatusCode)
	}
	var comment domain.Comment
	decodeBody(t, resp, &comment)
	if comment.User == nil || comment.User.Role != domain.RoleTech {
		t.Errorf("expected author snapshot on the comment, got %+v", comment.User)
	}

	resp = apiRequest(t, s, http.MethodPost, path, tech.Token, map[string]string{"content": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty comment: expected 400, got %d", resp.StatusCode)
	}
}

func TestAnalyzeSentimentEndpoint(t *testing.T) {
	s := newTestServer(t)
	user := loginAs(t, s, "user@example.com", "user123")

	var annotation domain.SentimentAnnotation
	resp := apiRequest(t, s, http.MethodPost, "/analyze-sentiment", user.Token, map[string]string{
		"text": "great fast helpful, thanks!",
	})
	decodeBody(t, resp, &annotation)
	if annotation.Score != domain.SentimentVeryPositive {
		t.Errorf("positive text: expected score 5, got %d", annotation.Score)
	}
	if len(annotation.Keywords) != 4 {
		t.Errorf("expected 4 lexicon keywords, got %v", annotation.Keywords)
	}

	resp = apiRequest(t, s, http.MethodPost, "/analyze-sentiment", user.Token, map[string]string{
		"text": "terrible broken outage, worst",
	})
	decodeBody(t, resp, &annotation)
	if annotation.Score != domain.SentimentVeryNegative {
		t.Errorf("negative text: expected score 1, got %d", annotation.Score)
	}

	resp = apiRequest(t, s, http.MethodPost, "/analyze-sentiment", user.Token, map[string]string{"text": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty text: expected 400, got %d", resp.StatusCode)
	}
}

func TestOverallSentimentRollup(t *testing.T) {
	s := newTestServer(t)
	user := loginAs(t, s, "user@example.com", "user123")

	created := createRequestAs(t, s, user.Token, "rollup probe")
	rollupPath := "/requests/" + created.ID + "/analyze-sentiment"

	// No annotated comments yet.
	resp := apiRequest(t, s, http.MethodPost, rollupPath, user.Token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty rollup: expected 400, got %d", resp.StatusCode)
	}

	commentsPath := "/requests/" + created.ID + "/comments"
	for _, body := range []map[string]any{
		{"content": "great", "sentiment": map[string]any{"score": 5, "confidence": 0.8, "keywords": []string{"great"}}},
		{"content": "slow", "sentiment": map[string]any{"score": 1, "confidence": 0.6, "keywords": []string{"slow"}}},
	} {
		if resp := apiRequest(t, s, http.MethodPost, commentsPath, user.Token, body); resp.StatusCode != http.StatusCreated {
			t.Fatalf("comment: expected 201, got %d", resp.StatusCode)
		}
	}

	var rollup domain.SentimentAnnotation
	resp = apiRequest(t, s, http.MethodPost, rollupPath, user.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rollup: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &rollup)
	if rollup.Score != domain.SentimentNeutral {
		t.Errorf("expected averaged score 3, got %d", rollup.Score)
	}
	if math.Abs(rollup.Confidence-0.7) > 0.001 {
		t.Errorf("expected averaged confidence 0.7, got %v", rollup.Confidence)
	}

	// The rollup is persisted on the request.
	var fetched domain.Request
	resp = apiRequest(t, s, http.MethodGet, "/requests/"+created.ID, user.Token, nil)
	decodeBody(t, resp, &fetched)
	if fetched.OverallSentiment == nil {
		t.Error("expected overall sentiment on the fetched request")
	}
}

func TestDashboardStatsAccess(t *testing.T) {
	s := newTestServer(t)
	user := loginAs(t, s, "user@example.com", "user123")
	tech := loginAs(t, s, "tech@example.com", "tech123")
	admin := loginAs(t, s, "admin@example.com", "admin123")

	createRequestAs(t, s, user.Token, "one")
	createRequestAs(t, s, user.Token, "two")

	if resp := apiRequest(t, s, http.MethodGet, "/dashboard/stats", tech.Token, nil); resp.StatusCode != http.StatusForbidden {
		t.Errorf("tech stats: expected 403, got %d", resp.StatusCode)
	}

	var stats dashboard.Stats
	resp := apiRequest(t, s, http.MethodGet, "/dashboard/stats", admin.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin stats: expected 200, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &stats)
	if stats.TotalRequests != 2 || stats.OpenRequests != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	// Per-user stats: self and admin only.
	selfPath := "/dashboard/users/" + user.User.ID + "/stats"
	if resp := apiRequest(t, s, http.MethodGet, selfPath, user.Token, nil); resp.StatusCode != http.StatusOK {
		t.Errorf("own stats: expected 200, got %d", resp.StatusCode)
	}
	if resp := apiRequest(t, s, http.MethodGet, selfPath, tech.Token, nil); resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign stats: expected 403, got %d", resp.StatusCode)
	}
}

func TestAccountReadPermissions(t *testing.T) {
	s := newTestServer(t)
	user := loginAs(t, s, "user@example.com", "user123")
	tech := loginAs(t, s, "tech@example.com", "tech123")

	// Staff read any account; assignment pre-checks depend on this.
	resp := apiRequest(t, s, http.MethodGet, "/users/"+user.User.ID, tech.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("tech reading an account: expected 200, got %d", resp.StatusCode)
	}

	resp = apiRequest(t, s, http.MethodGet, "/users/"+user.User.ID, user.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("end user reading own account: expected 200, got %d", resp.StatusCode)
	}
	resp = apiRequest(t, s, http.MethodGet, "/users/"+tech.User.ID, user.Token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("end user reading a foreign account: expected 403, got %d", resp.StatusCode)
	}
}

func TestUserAdministration(t *testing.T) {
	s := newTestServer(t)
	user := loginAs(t, s, "user@example.com", "user123")
	admin := loginAs(t, s, "admin@example.com", "admin123")

	if resp := apiRequest(t, s, http.MethodGet, "/users", user.Token, nil); resp.StatusCode != http.StatusForbidden {
		t.Errorf("end user listing accounts: expected 403, got %d", resp.StatusCode)
	}

	var users []domain.User
	resp := apiRequest(t, s, http.MethodGet, "/users", admin.Token, nil)
	decodeBody(t, resp, &users)
	if len(users) != 3 {
		t.Errorf("expected 3 seeded accounts, got %d", len(users))
	}

	resp = apiRequest(t, s, http.MethodPut, "/users/"+user.User.ID, admin.Token, map[string]string{"firstName": "Renamed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin user update: expected 200, got %d", resp.StatusCode)
	}
	var updated domain.User
	decodeBody(t, resp, &updated)
	if updated.FirstName != "Renamed" {
		t.Errorf("user not updated: %+v", updated)
	}
}
