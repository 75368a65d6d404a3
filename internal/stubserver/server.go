// Package stubserver implements the remote-authority contract in
// process: a development stand-in and test double for the real service
// of record. It issues JWT bearer tokens, stores entities in memory and
// scores sentiment with a small lexicon model.
package stubserver

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-desk/internal/dashboard"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/pkg/apperrors"
)

const authUserKey = "auth_user"

// Config controls token issuance and seeding.
type Config struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	SeedDemoData          bool
}

// Server is the in-process authority.
type Server struct {
	App        *fiber.App
	store      *memoryStore
	tokens     *tokenManager
	logger     *zap.Logger
	bcryptCost int
}

// New builds the server and registers all routes.
func New(cfg Config, logger *zap.Logger) (*Server, error) {
	cost := cfg.BcryptCost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	s := &Server{
		App:        fiber.New(fiber.Config{DisableStartupMessage: true}),
		store:      newMemoryStore(),
		tokens:     newTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		logger:     logger,
		bcryptCost: cost,
	}
	s.App.Use(s.errorHandling)
	s.registerRoutes()
	if cfg.SeedDemoData {
		if err := s.seed(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.App.Group("/api")

	api.Post("/auth/register", s.register)
	api.Post("/auth/login", s.login)

	protected := api.Group("", s.authenticate)
	protected.Get("/auth/me", s.me)

	protected.Get("/users", s.listUsers)
	protected.Get("/users/:id", s.getUser)
	protected.Put("/users/:id", s.updateUser)
	protected.Delete("/users/:id", s.deleteUser)
	protected.Get("/users/:id/requests", s.listUserRequests)

	protected.Get("/requests", s.listRequests)
	protected.Post("/requests", s.createRequest)
	protected.Get("/requests/assigned/:id", s.listAssignedRequests)
	protected.Get("/requests/:id", s.getRequest)
	protected.Put("/requests/:id", s.updateRequest)
	protected.Delete("/requests/:id", s.deleteRequest)
	protected.Post("/requests/:id/comments", s.addComment)
	protected.Post("/requests/:id/analyze-sentiment", s.refreshOverallSentiment)

	protected.Post("/analyze-sentiment", s.analyzeSentiment)

	protected.Get("/dashboard/stats", s.dashboardStats)
	protected.Get("/dashboard/users/:id/stats", s.userDashboardStats)
}

func (s *Server) errorHandling(c *fiber.Ctx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = apperrors.NewInternal(nil)
		}
		if err != nil {
			appErr := apperrors.From(err)
			if appErr.HTTPStatus >= 500 {
				s.logger.Error("request failed", zap.Error(appErr))
			}
			c.Status(appErr.HTTPStatus)
			err = c.JSON(fiber.Map{"message": appErr.Message})
		}
	}()
	return c.Next()
}

func (s *Server) authenticate(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	if header == "" {
		return apperrors.NewAuthenticationFailed("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewAuthenticationFailed("invalid authorization header")
	}
	claims, err := s.tokens.parse(parts[1])
	if err != nil {
		return apperrors.NewAuthenticationFailed("invalid token")
	}
	user, err := s.store.userByID(claims.Subject)
	if err != nil {
		return apperrors.NewAuthenticationFailed("user not found")
	}
	c.Locals(authUserKey, user)
	return c.Next()
}

func principal(c *fiber.Ctx) *domain.User {
	user, _ := c.Locals(authUserKey).(*domain.User)
	return user
}

type registerPayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (s *Server) register(c *fiber.Ctx) error {
	var payload registerPayload
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationFailed("invalid payload", nil)
	}
	if payload.FirstName == "" || payload.LastName == "" || payload.Email == "" || payload.Password == "" {
		return apperrors.NewValidationFailed("firstName, lastName, email, password required", nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), s.bcryptCost)
	if err != nil {
		return apperrors.NewInternal(err)
	}
	user, err := s.store.createUser(domain.User{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Role:      domain.RoleUser,
	}, string(hash))
	if err != nil {
		return err
	}
	return s.respondWithToken(c, fiber.StatusCreated, user)
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(c *fiber.Ctx) error {
	var payload loginPayload
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationFailed("invalid payload", nil)
	}
	user, hash, err := s.store.userByEmail(payload.Email)
	if err != nil {
		return apperrors.NewAuthenticationFailed("invalid email or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(payload.Password)) != nil {
		return apperrors.NewAuthenticationFailed("invalid email or password")
	}
	return s.respondWithToken(c, fiber.StatusOK, user)
}

func (s *Server) respondWithToken(c *fiber.Ctx, status int, user *domain.User) error {
	token, err := s.tokens.generate(user.ID, user.Role)
	if err != nil {
		return apperrors.NewInternal(err)
	}
	return c.Status(status).JSON(fiber.Map{"token": token, "user": user})
}

func (s *Server) me(c *fiber.Ctx) error {
	return c.JSON(principal(c))
}

func (s *Server) listUsers(c *fiber.Ctx) error {
	if principal(c).Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin access required")
	}
	return c.JSON(s.store.listUsers())
}

// getUser lets staff read any account (assignment needs the target's
// role); end users read only their own.
func (s *Server) getUser(c *fiber.Ctx) error {
	caller := principal(c)
	id := c.Params("id")
	if caller.Role == domain.RoleUser && caller.ID != id {
		return apperrors.NewForbidden("access denied")
	}
	user, err := s.store.userByID(id)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

type userUpdatePayload struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
}

func (s *Server) updateUser(c *fiber.Ctx) error {
	if principal(c).Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin access required")
	}
	var payload userUpdatePayload
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationFailed("invalid payload", nil)
	}
	user, err := s.store.updateUser(c.Params("id"), func(user *domain.User) {
		if payload.FirstName != nil {
			user.FirstName = *payload.FirstName
		}
		if payload.LastName != nil {
			user.LastName = *payload.LastName
		}
		if payload.Email != nil {
			user.Email = *payload.Email
		}
	})
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (s *Server) deleteUser(c *fiber.Ctx) error {
	if principal(c).Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin access required")
	}
	if err := s.store.deleteUser(c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "user deleted"})
}

func (s *Server) listRequests(c *fiber.Ctx) error {
	caller := principal(c)
	switch caller.Role {
	case domain.RoleAdmin, domain.RoleTech:
		return c.JSON(s.store.listRequests(requestFilter{}))
	case domain.RoleUser:
		return c.JSON(s.store.listRequests(requestFilter{ownerID: &caller.ID}))
	default:
		return apperrors.NewInternal(fmt.Errorf("unknown role %q", caller.Role))
	}
}

func (s *Server) listUserRequests(c *fiber.Ctx) error {
	caller := principal(c)
	id := c.Params("id")
	if caller.Role != domain.RoleAdmin && caller.ID != id {
		return apperrors.NewForbidden("access denied")
	}
	return c.JSON(s.store.listRequests(requestFilter{ownerID: &id}))
}

func (s *Server) listAssignedRequests(c *fiber.Ctx) error {
	caller := principal(c)
	id := c.Params("id")
	if caller.Role != domain.RoleAdmin && caller.ID != id {
		return apperrors.NewForbidden("access denied")
	}
	return c.JSON(s.store.listRequests(requestFilter{assigneeID: &id}))
}

func (s *Server) getRequest(c *fiber.Ctx) error {
	request, err := s.store.requestByID(c.Params("id"))
	if err != nil {
		return err
	}
	caller := principal(c)
	if caller.Role == domain.RoleUser && caller.ID != request.UserID {
		return apperrors.NewForbidden("access denied")
	}
	return c.JSON(request)
}

type createRequestPayload struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Department    domain.Department `json:"department"`
	Priority      domain.Priority   `json:"priority"`
	ServiceType   string            `json:"serviceType"`
	AccountNumber string            `json:"accountNumber"`
	Location      string            `json:"location"`
	IssueType     string            `json:"issueType"`
}

func (s *Server) createRequest(c *fiber.Ctx) error {
	var payload createRequestPayload
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationFailed("invalid payload", nil)
	}
	if payload.Title == "" || payload.Description == "" {
		return apperrors.NewValidationFailed("title and description required", nil)
	}
	if !payload.Department.Valid() {
		return apperrors.NewValidationFailed("unknown department", nil)
	}
	if !payload.Priority.Valid() {
		return apperrors.NewValidationFailed("priority must be between 1 and 5", nil)
	}
	created := s.store.createRequest(domain.Request{
		Title:         payload.Title,
		Description:   payload.Description,
		Department:    payload.Department,
		Priority:      payload.Priority,
		ServiceType:   payload.ServiceType,
		AccountNumber: payload.AccountNumber,
		Location:      payload.Location,
		IssueType:     payload.IssueType,
		UserID:        principal(c).ID,
	})
	return c.Status(fiber.StatusCreated).JSON(created)
}

type updateRequestPayload struct {
	Title       *string               `json:"title"`
	Description *string               `json:"description"`
	Status      *domain.RequestStatus `json:"status"`
	AssignedTo  *string               `json:"assignedTo"`
	Priority    *domain.Priority      `json:"priority"`
	Department  *domain.Department    `json:"department"`
}

// updateRequest applies field-level permissions: owners edit title and
// description, technicians and administrators edit status and assignee,
// administrators alone edit priority and department.
func (s *Server) updateRequest(c *fiber.Ctx) error {
	existing, err := s.store.requestByID(c.Params("id"))
	if err != nil {
		return err
	}
	caller := principal(c)
	if caller.Role == domain.RoleUser && caller.ID != existing.UserID {
		return apperrors.NewForbidden("access denied")
	}

	var payload updateRequestPayload
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationFailed("invalid payload", nil)
	}
	if payload.Status != nil && !payload.Status.Valid() {
		return apperrors.NewValidationFailed("unknown status", nil)
	}
	if payload.Priority != nil && !payload.Priority.Valid() {
		return apperrors.NewValidationFailed("priority must be between 1 and 5", nil)
	}
	if payload.Department != nil && !payload.Department.Valid() {
		return apperrors.NewValidationFailed("unknown department", nil)
	}

	staff := caller.Role == domain.RoleAdmin || caller.Role == domain.RoleTech
	applied := false
	updated, err := s.store.updateRequest(existing.ID, func(request *domain.Request) {
		if caller.ID == request.UserID {
			if payload.Title != nil {
				request.Title = *payload.Title
				applied = true
			}
			if payload.Description != nil {
				request.Description = *payload.Description
				applied = true
			}
		}
		if staff {
			if payload.Status != nil {
				request.Status = *payload.Status
				applied = true
			}
			if payload.AssignedTo != nil {
				request.AssignedTo = payload.AssignedTo
				applied = true
			}
		}
		if caller.Role == domain.RoleAdmin {
			if payload.Priority != nil {
				request.Priority = *payload.Priority
				applied = true
			}
			if payload.Department != nil {
				request.Department = *payload.Department
				applied = true
			}
		}
	})
	if err != nil {
		return err
	}
	if !applied {
		return apperrors.NewValidationFailed("no fields to update or permission denied", nil)
	}
	return c.JSON(updated)
}

func (s *Server) deleteRequest(c *fiber.Ctx) error {
	if principal(c).Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin access required")
	}
	if err := s.store.deleteRequest(c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "request deleted"})
}

type commentPayload struct {
	Content   string                      `json:"content"`
	Sentiment *domain.SentimentAnnotation `json:"sentiment"`
}

func (s *Server) addComment(c *fiber.Ctx) error {
	request, err := s.store.requestByID(c.Params("id"))
	if err != nil {
		return err
	}
	caller := principal(c)
	if caller.Role == domain.RoleUser && caller.ID != request.UserID {
		return apperrors.NewForbidden("access denied")
	}
	var payload commentPayload
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationFailed("invalid payload", nil)
	}
	if payload.Content == "" {
		return apperrors.NewValidationFailed("comment content is required", nil)
	}
	comment, err := s.store.addComment(request.ID, caller.ID, payload.Content, payload.Sentiment)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

type analyzeRequestPayload struct {
	Text string `json:"text"`
}

func (s *Server) analyzeSentiment(c *fiber.Ctx) error {
	var payload analyzeRequestPayload
	if err := c.BodyParser(&payload); err != nil {
		return apperrors.NewValidationFailed("invalid payload", nil)
	}
	if payload.Text == "" {
		return apperrors.NewValidationFailed("text is required", nil)
	}
	return c.JSON(scoreText(payload.Text))
}

func (s *Server) refreshOverallSentiment(c *fiber.Ctx) error {
	request, err := s.store.requestByID(c.Params("id"))
	if err != nil {
		return err
	}
	rollup := rollupSentiment(request)
	if rollup == nil {
		return apperrors.NewValidationFailed("no annotated comments to summarize", nil)
	}
	if _, err := s.store.setOverallSentiment(request.ID, rollup); err != nil {
		return err
	}
	return c.JSON(rollup)
}

func (s *Server) dashboardStats(c *fiber.Ctx) error {
	if principal(c).Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin access required")
	}
	return c.JSON(dashboard.Compute(s.store.listRequests(requestFilter{})))
}

func (s *Server) userDashboardStats(c *fiber.Ctx) error {
	caller := principal(c)
	id := c.Params("id")
	if caller.Role != domain.RoleAdmin && caller.ID != id {
		return apperrors.NewForbidden("access denied")
	}
	return c.JSON(dashboard.Compute(s.store.listRequests(requestFilter{ownerID: &id})))
}

// seed creates the demo accounts used by development and examples.
func (s *Server) seed() error {
	seedAccounts := []struct {
		firstName, lastName, email, password string
		role                                 domain.Role
	}{
		{"Admin", "User", "admin@example.com", "admin123", domain.RoleAdmin},
		{"Tech", "Support", "tech@example.com", "tech123", domain.RoleTech},
		{"Regular", "User", "user@example.com", "user123", domain.RoleUser},
	}
	for _, acct := range seedAccounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(acct.password), s.bcryptCost)
		if err != nil {
			return err
		}
		if _, err := s.store.createUser(domain.User{
			FirstName: acct.firstName,
			LastName:  acct.lastName,
			Email:     acct.email,
			Role:      acct.role,
		}, string(hash)); err != nil {
			return err
		}
	}
	return nil
}
