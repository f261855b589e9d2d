// Package auth validates credentials against an in-memory user set and
// issues and verifies the bearer tokens that guard the weather API.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/i474232898/weather-feed/internal/weather"
)

// DefaultTokenTTL is the lifetime of an issued access token.
const DefaultTokenTTL = 24 * time.Hour

// minPasswordLength applies to sign-ups only; seeded users are trusted.
const minPasswordLength = 8

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", weather.ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", weather.ErrUnauthorized)
	ErrTokenExpired       = fmt.Errorf("%w: token expired", weather.ErrUnauthorized)

	ErrUsernameTaken   = fmt.Errorf("%w: username already exists", weather.ErrValidation)
	ErrSignupDisabled  = errors.New("sign-up is disabled")
	errMissingSecret   = errors.New("jwt signing secret is required")
	errInvalidUserSpec = errors.New("invalid user entry; expected username:password")
)

// Config holds the token and hashing settings.
type Config struct {
	Secret      string
	TokenTTL    time.Duration
	AllowSignup bool
	Issuer      string
	// HashCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	HashCost int
}

// Service checks passwords with bcrypt and signs HS256 JWTs.
type Service struct {
	mu    sync.RWMutex
	users map[string][]byte // username -> bcrypt hash

	secret      []byte
	ttl         time.Duration
	allowSignup bool
	issuer      string
	cost        int
	dummyHash   []byte

	now    func() time.Time
	logger *slog.Logger
}

// NewService creates an auth service with an empty user set.
func NewService(cfg Config, logger *slog.Logger) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errMissingSecret
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Compared against when the username is unknown so both paths cost the same.
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cfg.HashCost)
	if err != nil {
		return nil, fmt.Errorf("init dummy hash: %w", err)
	}

	return &Service{
		users:       make(map[string][]byte),
		secret:      []byte(cfg.Secret),
		ttl:         cfg.TokenTTL,
		allowSignup: cfg.AllowSignup,
		issuer:      cfg.Issuer,
		cost:        cfg.HashCost,
		dummyHash:   dummy,
		now:         time.Now,
		logger:      logger,
	}, nil
}

// ParseUsers parses "user:password,user2:password2" into a map.
func ParseUsers(list string) (map[string]string, error) {
	users := make(map[string]string)
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, password, ok := strings.Cut(entry, ":")
		if !ok || name == "" || password == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidUserSpec, entry)
		}
		users[name] = password
	}
	return users, nil
}

// AddUser hashes and stores a credential, replacing any existing one.
func (s *Service) AddUser(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	s.mu.Lock()
	s.users[username] = hash
	s.mu.Unlock()
	return nil
}

// Login checks the credentials and returns a signed access token.
func (s *Service) Login(username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	s.mu.RLock()
	hash, ok := s.users[username]
	s.mu.RUnlock()

	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.logger.Info("login rejected", "username", username, "reason", "unknown_user")
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		s.logger.Info("login rejected", "username", username, "reason", "bad_password")
		return "", ErrInvalidCredentials
	}

	return s.IssueToken(username)
}

// Signup registers a new user and returns a token for it.
func (s *Service) Signup(username, password string) (string, error) {
	if !s.allowSignup {
		return "", ErrSignupDisabled
	}
	username = strings.TrimSpace(username)
	if username == "" || strings.Contains(username, ":") {
		return "", fmt.Errorf("%w: invalid username", weather.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", weather.ErrValidation, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.users[username]; exists {
		s.mu.Unlock()
		return "", ErrUsernameTaken
	}
	s.users[username] = hash
	s.mu.Unlock()

	s.logger.Info("user signed up", "username", username)
	return s.IssueToken(username)
}

// IssueToken signs an access token for username.
func (s *Service) IssueToken(username string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature and expiry and returns the username.
func (s *Service) ValidateToken(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidToken
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
