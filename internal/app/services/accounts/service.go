// Package accounts handles signup, login and user administration, and resolves
// token subjects for the auth middleware.
package accounts

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/core/service"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/cart"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/user"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage"
	svcerrors "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/errors"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

const (
	maxUsernameLength = 50
	maxNameLength     = 50

	defaultCacheSize = 1024
)

// TokenSigner issues access tokens for an authenticated user.
type TokenSigner interface {
	Sign(userID, role string) (token string, expiresAt time.Time, err error)
}

// CartClearer returns a user's reserved stock when the account goes away.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) (cart.View, error)
}

// Service manages user accounts.
type Service struct {
	users     storage.UserStore
	signer    TokenSigner
	carts     CartClearer
	cache     *lru.Cache[string, user.User]
	cost      int
	minLength int
	log       *logger.Logger
}

// New constructs an accounts service. signer may be nil when tokens are not
// issued (the seeder, the CLI).
func New(users storage.UserStore, signer TokenSigner, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	cache, _ := lru.New[string, user.User](defaultCacheSize)
	return &Service{
		users:     users,
		signer:    signer,
		cache:     cache,
		cost:      bcrypt.DefaultCost,
		minLength: 6,
		log:       log,
	}
}

// WithCartClearer hooks account deletion into the cart engine.
func (s *Service) WithCartClearer(c CartClearer) {
	s.carts = c
}

// WithPasswordPolicy overrides the bcrypt cost and the minimum password length.
func (s *Service) WithPasswordPolicy(cost, minLength int) {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.cost = cost
	}
	if minLength > 0 {
		s.minLength = minLength
	}
}

// WithResolveCacheSize resizes the resolve cache. Non-positive sizes are ignored.
func (s *Service) WithResolveCacheSize(size int) {
	if size <= 0 {
		return
	}
	if cache, err := lru.New[string, user.User](size); err == nil {
		s.cache = cache
	}
}

func (s *Service) Descriptor() service.Descriptor {
	return service.Descriptor{
		Name:         "accounts",
		Domain:       "identity",
		Capabilities: []string{"signup", "login", "admin"},
	}
}

// SignupInput carries a new account.
type SignupInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsAdmin   bool   `json:"-"`
}

// Update carries optional account changes. Password is only present so that
// handlers can refuse it.
type Update struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Avatar    *string `json:"avatar"`
	IsAdmin   *bool   `json:"is_admin"`
	IsActive  *bool   `json:"is_active"`
	Password  *string `json:"password"`
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      user.User `json:"user"`
}

// Signup registers an active account.
func (s *Service) Signup(ctx context.Context, in SignupInput) (user.User, error) {
	username := strings.TrimSpace(in.Username)
	if err := validateUsername(username); err != nil {
		return user.User{}, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return user.User{}, err
	}
	hash, err := s.HashPassword(strings.TrimSpace(in.Password))
	if err != nil {
		return user.User{}, err
	}
	first, last := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if len(first) > maxNameLength || len(last) > maxNameLength {
		return user.User{}, svcerrors.Validation("first_name and last_name cannot exceed %d characters", maxNameLength)
	}

	created, err := s.users.CreateUser(ctx, user.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      in.IsAdmin,
		FirstName:    first,
		LastName:     last,
		Avatar:       user.AvatarURL(username),
		IsActive:     true,
	})
	if err != nil {
		return user.User{}, service.Translate(err, "user", "")
	}
	s.log.WithField("user_id", created.ID).WithField("username", created.Username).Info("account created")
	return created, nil
}

// HashPassword enforces the length policy and hashes password.
func (s *Service) HashPassword(password string) (string, error) {
	if len(password) < s.minLength {
		return "", svcerrors.Validation("password must contain at least %d characters", s.minLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", svcerrors.Validation("password cannot be hashed: %v", err)
	}
	return string(hash), nil
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return LoginResult{}, svcerrors.Validation("email and password are required")
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return LoginResult{}, svcerrors.NotFound("user", email)
		}
		return LoginResult{}, err
	}
	if !u.IsActive {
		return LoginResult{}, svcerrors.Forbidden("account is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.WithField("user_id", u.ID).Warn("login failed: wrong password")
		return LoginResult{}, svcerrors.Unauthorized("invalid credentials")
	}
	if s.signer == nil {
		return LoginResult{}, svcerrors.Internal("token signing is not configured", nil)
	}
	token, expires, err := s.signer.Sign(u.ID, u.Role())
	if err != nil {
		return LoginResult{}, svcerrors.Internal("sign token", err)
	}
	s.cache.Add(u.ID, u)
	return LoginResult{Token: token, ExpiresAt: expires, User: u}, nil
}

// Resolve returns the current account behind a token subject. Deleted accounts
// fail with Unauthorized and disabled ones with Forbidden.
func (s *Service) Resolve(ctx context.Context, userID string) (user.User, error) {
	if u, ok := s.cache.Get(userID); ok {
		return u, nil
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, svcerrors.Unauthorized("account no longer exists")
		}
		return user.User{}, err
	}
	if !u.IsActive {
		return user.User{}, svcerrors.Forbidden("account is disabled")
	}
	s.cache.Add(u.ID, u)
	return u, nil
}

// ResolveRole adapts Resolve for the auth middleware.
func (s *Service) ResolveRole(ctx context.Context, userID string) (string, error) {
	u, err := s.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Role(), nil
}

// PurgeCache forgets every resolved account. Called after bulk writes such as
// a reseed.
func (s *Service) PurgeCache() {
	s.cache.Purge()
}

func (s *Service) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.users.ListUsers(ctx)
}

func (s *Service) GetUser(ctx context.Context, id string) (user.User, error) {
	id, err := service.RequireID("id", id)
	if err != nil {
		return user.User{}, err
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return user.User{}, service.Translate(err, "user", id)
	}
	return u, nil
}

// UpdateUser applies an administrator's changes. Passwords cannot be changed
// here.
func (s *Service) UpdateUser(ctx context.Context, id string, in Update) (user.User, error) {
	if in.Password != nil {
		return user.User{}, svcerrors.Validation("password cannot be changed through this endpoint")
	}
	return s.update(ctx, id, in)
}

// DeleteUser removes an account, returning its reserved stock first.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if s.carts != nil {
		if _, err := s.carts.ClearCart(ctx, u.ID); err != nil {
			return err
		}
	}
	if err := s.users.DeleteUser(ctx, u.ID); err != nil {
		return service.Translate(err, "user", u.ID)
	}
	s.cache.Remove(u.ID)
	s.log.WithField("user_id", u.ID).Info("account deleted")
	return nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (user.User, error) {
	return s.GetUser(ctx, userID)
}

// UpdateProfile applies a user's own changes. Password and role are refused.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in Update) (user.User, error) {
	if in.Password != nil || in.IsAdmin != nil {
		return user.User{}, svcerrors.Validation("password and is_admin cannot be changed on a profile")
	}
	in.IsActive = nil
	return s.update(ctx, userID, in)
}

// DeleteProfile removes the caller's own account. Administrators are refused.
func (s *Service) DeleteProfile(ctx context.Context, userID string) error {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsAdmin {
		return svcerrors.Validation("administrators cannot delete their own profile")
	}
	return s.DeleteUser(ctx, u.ID)
}

func (s *Service) update(ctx context.Context, id string, in Update) (user.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if err := validateUsername(name); err != nil {
			return user.User{}, err
		}
		u.Username = name
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return user.User{}, err
		}
		u.Email = email
	}
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if len(u.FirstName) > maxNameLength || len(u.LastName) > maxNameLength {
		return user.User{}, svcerrors.Validation("first_name and last_name cannot exceed %d characters", maxNameLength)
	}
	if in.Avatar != nil {
		u.Avatar = strings.TrimSpace(*in.Avatar)
	}
	if in.IsAdmin != nil {
		u.IsAdmin = *in.IsAdmin
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}

	updated, err := s.users.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, service.Translate(err, "user", id)
	}
	s.cache.Remove(updated.ID)
	return updated, nil
}

func validateUsername(name string) error {
	if name == "" {
		return svcerrors.Validation("username is required")
	}
	if len(name) > maxUsernameLength {
		return svcerrors.Validation("username cannot exceed %d characters", maxUsernameLength)
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", svcerrors.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", svcerrors.Validation("email address is not valid")
	}
	return email, nil
}
