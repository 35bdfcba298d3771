package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/QTMarketing/cps-sub000/internal/audit"
	"github.com/QTMarketing/cps-sub000/internal/common"
	"github.com/QTMarketing/cps-sub000/internal/logging"
	"github.com/QTMarketing/cps-sub000/internal/models"
)

// UserSource resolves operator accounts for credential checks.
type UserSource interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// Recorder is the audit hook; failed authentication attempts are recorded
// through it.
type Recorder interface {
	Record(ctx context.Context, ev audit.Event)
}

// Service performs password verification and login flows.
type Service struct {
	users  UserSource
	tokens *TokenManager
	audit  Recorder
	log    logging.Logger
}

func NewService(users UserSource, tokens *TokenManager, rec Recorder, log logging.Logger) *Service {
	return &Service{users: users, tokens: tokens, audit: rec, log: log}
}

// HashPassword produces the bcrypt hash stored on a user record.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Login checks credentials and issues a normal bearer token.
func (s *Service) Login(ctx context.Context, username, password, sourceAddr string) (string, error) {
	user, err := s.verify(ctx, username, password, sourceAddr)
	if err != nil {
		return "", err
	}
	return s.tokens.IssueAccessToken(user.Principal())
}

// VerifyPassword checks the supplied password against the stored hash for an
// already-authenticated principal and, on success, issues the step-up
// re-auth token. A failed attempt is recorded in the audit trail.
func (s *Service) VerifyPassword(ctx context.Context, username, password, sourceAddr string) (string, error) {
	user, err := s.verify(ctx, username, password, sourceAddr)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.IssueReAuthToken(user.Principal())
	if err != nil {
		return "", err
	}

	s.audit.Record(ctx, audit.Event{
		ActorID:    user.ID,
		Action:     audit.ActionReAuthIssued,
		EntityType: "user",
		EntityID:   user.ID,
		SourceAddr: sourceAddr,
	})
	return token, nil
}

func (s *Service) verify(ctx context.Context, username, password, sourceAddr string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.recordFailure(ctx, username, sourceAddr)
			return nil, common.ErrInvalidCredential
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.recordFailure(ctx, user.ID, sourceAddr)
		return nil, common.ErrInvalidCredential
	}
	return user, nil
}

func (s *Service) recordFailure(ctx context.Context, actor, sourceAddr string) {
	s.audit.Record(ctx, audit.Event{
		ActorID:    actor,
		Action:     audit.ActionLoginFailed,
		EntityType: "user",
		EntityID:   actor,
		SourceAddr: sourceAddr,
	})
}
