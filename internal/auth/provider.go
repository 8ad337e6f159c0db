// Package auth is the email/password identity provider. Sessions are carried
// by HS256 JWTs so a client can resume them after reconnecting.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"issueboard/internal/models"
)

// Reasons reported by AuthError.
const (
	ReasonInvalidEmail      = "invalid-email"
	ReasonWeakPassword      = "weak-password"
	ReasonEmailInUse        = "email-already-in-use"
	ReasonInvalidCredential = "invalid-credential"
	ReasonInvalidToken      = "invalid-token"
	ReasonTokenExpired      = "token-expired"
)

// MinPasswordLength is the shortest password accepted on sign up.
const MinPasswordLength = 6

// DefaultTokenTTL is used when the provider is built with a zero TTL.
const DefaultTokenTTL = 24 * time.Hour

// dummyHash keeps sign-in timing uniform for unknown emails.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AuthError is a rejected sign up, sign in or session resume.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth/%s: %v", e.Reason, e.Err)
	}
	return "auth/" + e.Reason
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// Provider signs users up and in and validates session tokens.
type Provider struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

// NewProvider builds a provider that signs tokens with secret.
func NewProvider(users UserStore, secret []byte, ttl time.Duration) *Provider {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &Provider{
		users:  users,
		secret: secret,
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// SignUp registers a new account and returns its identity and a session token.
func (p *Provider) SignUp(ctx context.Context, email, password string) (models.Identity, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return models.Identity{}, "", err
	}
	if len(password) < MinPasswordLength {
		return models.Identity{}, "", &AuthError{Reason: ReasonWeakPassword}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return models.Identity{}, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := p.users.CreateUser(ctx, models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	})
	if errors.Is(err, models.ErrEmailTaken) {
		return models.Identity{}, "", &AuthError{Reason: ReasonEmailInUse}
	}
	if err != nil {
		return models.Identity{}, "", fmt.Errorf("create user: %w", err)
	}
	return p.issue(user)
}

// SignIn checks the credentials and returns the identity and a session token.
func (p *Provider) SignIn(ctx context.Context, email, password string) (models.Identity, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return models.Identity{}, "", err
	}

	user, err := p.users.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return models.Identity{}, "", &AuthError{Reason: ReasonInvalidCredential}
	}
	if err != nil {
		return models.Identity{}, "", fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.Identity{}, "", &AuthError{Reason: ReasonInvalidCredential}
	}
	return p.issue(user)
}

// Resume validates a session token and returns the identity it was issued for.
func (p *Provider) Resume(ctx context.Context, tokenString string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, &AuthError{Reason: ReasonTokenExpired}
		}
		return models.Identity{}, &AuthError{Reason: ReasonInvalidToken, Err: err}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Identity{}, &AuthError{Reason: ReasonInvalidToken}
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return models.Identity{}, &AuthError{Reason: ReasonInvalidToken, Err: errors.New("missing sub claim")}
	}

	user, err := p.users.GetUser(ctx, sub)
	if errors.Is(err, models.ErrUserNotFound) {
		return models.Identity{}, &AuthError{Reason: ReasonInvalidToken, Err: err}
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("get user: %w", err)
	}
	return user.Identity(), nil
}

func (p *Provider) issue(user models.User) (models.Identity, string, error) {
	now := p.now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(p.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return models.Identity{}, "", fmt.Errorf("sign token: %w", err)
	}
	return user.Identity(), signed, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &AuthError{Reason: ReasonInvalidEmail}
	}
	return email, nil
}
