package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stevi10623-crypto/deductly-intake/internal/auth"
	"github.com/stevi10623-crypto/deductly-intake/internal/models"
	"github.com/stevi10623-crypto/deductly-intake/internal/repository"
)

type AuthService struct {
	users     repository.UserStore
	jwtSecret string
	ttl       time.Duration
}

func NewAuthService(users repository.UserStore, jwtSecret string, ttl time.Duration) *AuthService {
	return &AuthService{users: users, jwtSecret: jwtSecret, ttl: ttl}
}

type AuthResult struct {
	Token string              `json:"token"`
	User  models.UserResponse `json:"user"`
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	resp := user.ToResponse()
	return &resp, nil
}

// CreateUser adds a staff account. Only admins may call it.
func (s *AuthService) CreateUser(ctx context.Context, actor Actor, email, password, name, role string) (*models.UserResponse, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if role == "" {
		role = models.RoleStaff
	}
	if role != models.RoleStaff && role != models.RoleAdmin {
		return nil, invalidf("unknown role %q", role)
	}
	user, err := s.create(ctx, email, password, name, role)
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

// UpdateMe changes the caller's display name and, when password is set, their
// password.
func (s *AuthService) UpdateMe(ctx context.Context, actor Actor, name, password, confirm string) (*models.UserResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidf("name is required")
	}
	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	user.Name = name
	if password != "" {
		if password != confirm {
			return nil, invalidf("passwords do not match")
		}
		if err := s.setPassword(user, password); err != nil {
			return nil, err
		}
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, notFound(err, "user")
	}
	resp := user.ToResponse()
	return &resp, nil
}

// ListUsers returns the team ordered by name. Only admins may call it.
func (s *AuthService) ListUsers(ctx context.Context, actor Actor) ([]models.UserResponse, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToResponse())
	}
	return out, nil
}

// DeleteUser removes a team member. Admins cannot delete themselves.
func (s *AuthService) DeleteUser(ctx context.Context, actor Actor, id string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if id == actor.UserID {
		return invalidf("you cannot delete your own account")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return notFound(err, "user")
	}
	return nil
}

// ResetPassword sets a new password on another account. Only admins may call it.
func (s *AuthService) ResetPassword(ctx context.Context, actor Actor, id, password string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return notFound(err, "user")
	}
	if err := s.setPassword(user, password); err != nil {
		return err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return notFound(err, "user")
	}
	return nil
}

// SeedAdmin creates the bootstrap admin unless the email is already taken.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.create(ctx, email, password, "Admin", models.RoleAdmin)
	if errors.Is(err, ErrEmailTaken) {
		return nil
	}
	return err
}

func (s *AuthService) create(ctx context.Context, email, password, name, role string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalidf("a valid email is required")
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Role:         role,
		CreatedAt:    repository.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) setPassword(user *models.User, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return nil
}

func checkPassword(password string) error {
	if len(password) < 8 {
		return invalidf("password must be at least 8 characters")
	}
	return nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := auth.GenerateToken(s.jwtSecret, user.ID, user.Email, user.Role, s.ttl)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user.ToResponse()}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
