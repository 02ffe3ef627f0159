package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/abelsonz/rideunited/internal/auth"
	"github.com/abelsonz/rideunited/internal/kv"
	"github.com/abelsonz/rideunited/internal/shared/apperr"
)

const (
	sessionTTL  = 24 * time.Hour
	passwordKey = "admin:password"
)

// Session is the record stored under admin:session:{token}. ExpiresAt is
// epoch milliseconds; a session past it must re-authenticate, there is no
// renewal.
type Session struct {
	ExpiresAt int64  `json:"expiresAt"`
	Email     string `json:"email,omitempty"`
}

// IdentityVerifier resolves a user access token for the allow-listed-email
// login path.
type IdentityVerifier interface {
	Identify(ctx context.Context, accessToken string) (auth.User, error)
}

type LoginRequest struct {
	Password    string `json:"password"`
	AccessToken string `json:"access_token"`
}

type Service struct {
	store      *kv.Store
	identities IdentityVerifier
	password   string
	emails     []string
}

func NewService(store *kv.Store, identities IdentityVerifier, password string, emails []string) *Service {
	return &Service{
		store:      store,
		identities: identities,
		password:   password,
		emails:     emails,
	}
}

// Login trades a password or an allow-listed user's access token for an
// opaque session token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (string, error) {
	if req.AccessToken != "" {
		return s.loginWithAccessToken(ctx, req.AccessToken)
	}
	return s.loginWithPassword(ctx, req.Password)
}

func (s *Service) loginWithAccessToken(ctx context.Context, accessToken string) (string, error) {
	if s.identities == nil {
		return "", fmt.Errorf("unauthorized access: %w", apperr.ErrUnauthenticated)
	}
	user, err := s.identities.Identify(ctx, accessToken)
	if err != nil {
		return "", fmt.Errorf("unauthorized access: %w", apperr.ErrUnauthenticated)
	}
	for _, email := range s.emails {
		if strings.EqualFold(email, user.Email) {
			return s.createSession(ctx, user.Email)
		}
	}
	return "", fmt.Errorf("unauthorized access: %w", apperr.ErrUnauthenticated)
}

func (s *Service) loginWithPassword(ctx context.Context, password string) (string, error) {
	hash, err := s.passwordHash(ctx)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, apperr.ErrStorage)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", fmt.Errorf("invalid password: %w", apperr.ErrUnauthenticated)
	}
	return s.createSession(ctx, "")
}

// passwordHash loads the stored bcrypt hash, seeding it from the configured
// password on first use.
func (s *Service) passwordHash(ctx context.Context) (string, error) {
	var hash string
	found, err := s.store.Get(ctx, passwordKey, &hash)
	if err != nil {
		return "", err
	}
	if found {
		return hash, nil
	}

	seeded, err := bcrypt.GenerateFromPassword([]byte(s.password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, passwordKey, string(seeded)); err != nil {
		return "", err
	}
	return string(seeded), nil
}

func (s *Service) createSession(ctx context.Context, email string) (string, error) {
	token := uuid.NewString()
	session := Session{
		ExpiresAt: time.Now().Add(sessionTTL).UnixMilli(),
		Email:     email,
	}
	if err := s.store.SetWithTTL(ctx, sessionKey(token), session, sessionTTL); err != nil {
		return "", fmt.Errorf("%v: %w", err, apperr.ErrStorage)
	}
	return token, nil
}

// Verify checks a bearer session token.
func (s *Service) Verify(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("no admin token: %w", apperr.ErrUnauthenticated)
	}

	var session Session
	found, err := s.store.Get(ctx, sessionKey(token), &session)
	if err != nil {
		return fmt.Errorf("%v: %w", err, apperr.ErrStorage)
	}
	if !found {
		return fmt.Errorf("invalid or expired session: %w", apperr.ErrUnauthenticated)
	}
	if time.Now().UnixMilli() > session.ExpiresAt {
		return fmt.Errorf("invalid or expired session: %w", apperr.ErrSessionExpired)
	}
	return nil
}

func sessionKey(token string) string {
	return "admin:session:" + token
}
