// Package account is chatd's in-memory user registry. It hashes passwords with
// bcrypt and issues HS256 bearer tokens.
package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/z-chat/internal/model/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrAccountNotFound    = errors.New("account not found")
)

// ValidationError lists per-field problems with a registration request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	for _, field := range []string{"username", "email", "password"} {
		if msg, ok := e.Fields[field]; ok {
			return msg
		}
	}
	return "invalid request"
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Account is a registered user.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// Public strips the password hash.
func (a Account) Public() user.Account {
	return user.Account{ID: user.ID(a.ID), Username: a.Username, Email: a.Email}
}

// Profile returns the /me view of the account.
func (a Account) Profile() user.Profile {
	return user.Profile{ID: a.ID, Username: a.Username, Email: a.Email, CreatedAt: a.CreatedAt, ModifiedAt: a.ModifiedAt}
}

// Claims carried in issued tokens.
type Claims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Service is safe for concurrent use.
type Service struct {
	mu       sync.RWMutex
	accounts map[string]*Account // by id
	revoked  map[string]time.Time

	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

// NewService creates an empty registry.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{
		accounts: make(map[string]*Account),
		revoked:  make(map[string]time.Time),
		secret:   []byte(secret),
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// Register validates and stores a new account.
func (s *Service) Register(_ context.Context, req user.RegisterRequest) (Account, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	fields := make(map[string]string)
	if len(username) < 3 {
		fields["username"] = "Username must be at least 3 characters"
	}
	if !emailRegex.MatchString(email) {
		fields["email"] = "Invalid email format"
	}
	if len(req.Password) < 6 {
		fields["password"] = "Password must be at least 6 characters"
	}
	if len(fields) > 0 {
		return Account{}, &ValidationError{Fields: fields}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return Account{}, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if strings.EqualFold(acc.Username, username) {
			return Account{}, ErrUsernameTaken
		}
		if acc.Email == email {
			return Account{}, ErrEmailTaken
		}
	}

	now := s.now().UTC()
	acc := &Account{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	s.accounts[acc.ID] = acc
	return *acc, nil
}

// Authenticate checks a username-or-email and password and issues a token.
func (s *Service) Authenticate(_ context.Context, login, password string) (Account, string, error) {
	login = strings.TrimSpace(login)

	s.mu.RLock()
	var found *Account
	for _, acc := range s.accounts {
		if strings.EqualFold(acc.Username, login) || strings.EqualFold(acc.Email, login) {
			found = acc
			break
		}
	}
	s.mu.RUnlock()

	if found == nil {
		return Account{}, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(found.PasswordHash, []byte(password)); err != nil {
		return Account{}, "", ErrInvalidCredentials
	}

	token, err := s.issue(*found)
	if err != nil {
		return Account{}, "", err
	}
	return *found, token, nil
}

func (s *Service) issue(acc Account) (string, error) {
	now := s.now()
	claims := Claims{
		Username: acc.Username,
		Email:    acc.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   acc.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify parses a bearer token and returns its account.
func (s *Service) Verify(_ context.Context, token string) (Account, *Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Account{}, nil, ErrTokenExpired
		}
		return Account{}, nil, ErrInvalidToken
	}
	if !parsed.Valid {
		return Account{}, nil, ErrInvalidToken
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, revoked := s.revoked[claims.ID]; revoked {
		return Account{}, nil, ErrInvalidToken
	}
	acc, ok := s.accounts[claims.Subject]
	if !ok {
		return Account{}, nil, ErrInvalidToken
	}
	return *acc, claims, nil
}

// Revoke blacklists a verified token until it would have expired anyway.
func (s *Service) Revoke(_ context.Context, claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	expires := s.now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[claims.ID] = expires
}

// Get returns an account by id.
func (s *Service) Get(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return *acc, nil
}
