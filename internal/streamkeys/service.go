// Package streamkeys authorizes RTMP publish attempts and manages the stream
// key credentials that gate them.
package streamkeys

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gallos-live/backend/internal/models"
)

// Authorization and key management outcomes. Callers translating these to the
// publish webhook must collapse all denials into one generic rejection; the
// distinctions exist for internal logging only.
var (
	ErrKeyNotFound       = errors.New("stream key not found")
	ErrNotPublisher      = errors.New("account lacks publish capability")
	ErrPublisherInactive = errors.New("account is deactivated")
	ErrUserNotFound      = errors.New("user not found")
	ErrNoStreamKey       = errors.New("user has no stream key")
)

// streamKeyBytes is the entropy of a generated key: 32 bytes rendered as
// 64 hex characters.
const streamKeyBytes = 32

// Store is the credential store surface this package needs. Lookups return
// (nil, nil) when no row matches.
type Store interface {
	GetByStreamKey(ctx context.Context, key string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SetStreamKey(ctx context.Context, userID uuid.UUID, key string) error
}

// Publisher identifies an authorized publisher.
type Publisher struct {
	ID    uuid.UUID `json:"user_id"`
	Email string    `json:"email"`
}

// PublishConfig is the ready-to-use OBS/encoder configuration for a key.
type PublishConfig struct {
	RTMPURL   string `json:"rtmp_url"`
	StreamKey string `json:"stream_key"`
}

// KeyGrant is the result of generating or fetching a stream key.
type KeyGrant struct {
	Email     string        `json:"user_email"`
	StreamKey string        `json:"stream_key"`
	Publish   PublishConfig `json:"publish_config"`
}

// Service validates inbound publish credentials and issues new ones.
type Service struct {
	store     Store
	ingestURL string
	logger    *zap.Logger
}

// NewService creates a stream key service. ingestURL is the RTMP publish
// endpoint handed out with generated keys.
func NewService(store Store, ingestURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, ingestURL: ingestURL, logger: logger}
}

// Authorize validates an inbound publish credential. It is a pure read: the
// credential must exist, belong to an account with the publish capability, and
// the account must be active, checked in that order.
func (s *Service) Authorize(ctx context.Context, key string) (*Publisher, error) {
	if key == "" {
		return nil, ErrKeyNotFound
	}
	user, err := s.store.GetByStreamKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup stream key: %w", err)
	}
	if user == nil {
		s.logger.Info("publish denied: unknown stream key")
		return nil, ErrKeyNotFound
	}
	if !user.Can(models.CapPublish) {
		s.logger.Info("publish denied: no publish capability", zap.String("email", user.Email))
		return nil, ErrNotPublisher
	}
	if !user.Active {
		s.logger.Info("publish denied: account deactivated", zap.String("email", user.Email))
		return nil, ErrPublisherInactive
	}
	s.logger.Info("publish authorized", zap.String("email", user.Email))
	return &Publisher{ID: user.ID, Email: user.Email}, nil
}

// Generate issues a fresh stream key for the account with the given email and
// persists it, invalidating any previous key immediately. The account must
// hold the publish capability.
func (s *Service) Generate(ctx context.Context, email string) (*KeyGrant, error) {
	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.Can(models.CapPublish) {
		return nil, ErrNotPublisher
	}

	key, err := newStreamKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := s.store.SetStreamKey(ctx, user.ID, key); err != nil {
		return nil, fmt.Errorf("store stream key: %w", err)
	}

	s.logger.Info("stream key generated", zap.String("email", user.Email))
	return s.grant(user.Email, key), nil
}

// Lookup returns the current stream key and publish configuration for the
// account with the given email.
func (s *Service) Lookup(ctx context.Context, email string) (*KeyGrant, error) {
	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.Can(models.CapPublish) {
		return nil, ErrNotPublisher
	}
	if user.StreamKey == "" {
		return nil, ErrNoStreamKey
	}
	return s.grant(user.Email, user.StreamKey), nil
}

func (s *Service) grant(email, key string) *KeyGrant {
	return &KeyGrant{
		Email:     email,
		StreamKey: key,
		Publish: PublishConfig{
			RTMPURL:   s.ingestURL,
			StreamKey: key,
		},
	}
}

func newStreamKey() (string, error) {
	buf := make([]byte, streamKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
