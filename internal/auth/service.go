package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/barq-desk/barq/internal/shared"
)

// dummyHash equalises timing between unknown users and wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("barq-timing-guard"), bcrypt.MinCost)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Authenticate validates username/password credentials. Every failure,
// including an inactive account, is reported as shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, ErrCredentialsRequired
	}
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RegisterSession persists the session metadata.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, Session{
		ID:        id,
		UserID:    userID,
		IP:        ip,
		UserAgent: ua,
		CreatedAt: s.now(),
		ExpiresAt: expiresAt,
	})
}

// RemoveSession deletes a session record.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// PurgeExpired drops session rows whose expiry has passed.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpiredSessions(ctx, s.now())
}
