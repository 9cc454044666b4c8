package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"tradepost/internal/domain"
	"tradepost/internal/repos"
	"tradepost/internal/validate"
)

type AuthService struct {
	Users  *repos.UserRepo
	secret []byte
	ttl    time.Duration
	now    Clock
}

// Claims carried by API tokens. Subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func NewAuthService(users *repos.UserRepo, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{Users: users, secret: []byte(secret), ttl: ttl, now: utcNow}
}

func (s *AuthService) Register(ctx context.Context, email, name, password string) (*domain.User, error) {
	email, ok := validate.Email(email)
	if !ok {
		return nil, invalid("email")
	}
	name, ok = validate.Name(name)
	if !ok {
		return nil, invalid("name must be 1-40 characters")
	}
	if !validate.Password(password) {
		return nil, invalid("password needs 8-64 characters with upper, lower, digit and symbol")
	}
	if _, err := s.Users.ByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := domain.User{
		ID:        newID(),
		Email:     strings.ToLower(email),
		Name:      name,
		Hash:      string(hash),
		Role:      domain.RoleUser,
		CreatedAt: s.now(),
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login checks credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := s.Users.ByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return "", nil, ErrBadCreds
	}
	tok, err := s.Issue(*u)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}

func (s *AuthService) Issue(u domain.User) (string, error) {
	now := s.now()
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses a token and rejects anything not signed with our HMAC key.
func (s *AuthService) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// Authenticate resolves a token to its user id.
func (s *AuthService) Authenticate(token string) (string, error) {
	c, err := s.Verify(token)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

func (s *AuthService) Me(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.Users.ByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}
