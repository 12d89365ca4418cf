// Package identity authenticates users and exposes the session lifecycle as a
// stream of state transitions.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"centavo.app/internal/docstore"
	"centavo.app/internal/ids"
)

const collectionUsers = "users"

const (
	// Durable sessions survive a restart of the client; ephemeral sessions
	// end with it. The mode is fixed before the credential exchange.
	defaultDurableTTL   = 14 * 24 * time.Hour
	defaultEphemeralTTL = 12 * time.Hour

	minPasswordLen = 6
)

// Service provides signup, login and logout over the user collection.
type Service struct {
	store  docstore.Store
	stream *Stream
	now    func() time.Time

	durableTTL   time.Duration
	ephemeralTTL time.Duration
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithSessionTTLs overrides the durable and ephemeral session lifetimes.
func WithSessionTTLs(durable, ephemeral time.Duration) Option {
	return func(s *Service) {
		if durable > 0 {
			s.durableTTL = durable
		}
		if ephemeral > 0 {
			s.ephemeralTTL = ephemeral
		}
	}
}

// NewService constructs a Service publishing transitions to the given stream.
func NewService(store docstore.Store, stream *Stream, opts ...Option) *Service {
	svc := &Service{
		store:        store,
		stream:       stream,
		now:          time.Now,
		durableTTL:   defaultDurableTTL,
		ephemeralTTL: defaultEphemeralTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Stream returns the identity transition stream.
func (s *Service) Stream() *Stream { return s.stream }

// Session is an established authenticated session.
type Session struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Durable   bool      `json:"durable"`
}

// Signup creates a new identity and immediately authenticates it.
func (s *Service) Signup(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if len(password) < minPasswordLen {
		return Session{}, ErrWeakPassword
	}

	existing, err := s.findByEmail(ctx, email)
	if err != nil {
		return Session{}, err
	}
	if existing != nil {
		return Session{}, ErrEmailInUse
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	// The user document owns itself, so the ID has to exist before Put.
	id := ids.New()
	_, err = s.store.Put(ctx, docstore.Document{
		Collection: collectionUsers,
		ID:         id,
		Owner:      id,
		Fields: map[string]any{
			"email":        email,
			"passwordHash": hash,
			"disabled":     false,
		},
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("create user: %w", err)
	}

	return s.startSession(id, email, true)
}

// Login authenticates an existing identity. remember selects whether the
// session is durable; the choice is made before credentials are verified,
// since switching it on an established session is undefined.
func (s *Service) Login(ctx context.Context, email, password string, remember bool) (Session, error) {
	durable := remember

	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return Session{}, err
	}
	if user == nil {
		return Session{}, ErrUserNotFound
	}
	if disabled, _ := user.Fields["disabled"].(bool); disabled {
		return Session{}, ErrUserDisabled
	}
	hash, _ := user.Fields["passwordHash"].(string)
	if err := CheckPassword(hash, password); err != nil {
		return Session{}, err
	}

	return s.startSession(user.ID, email, durable)
}

// Logout ends the user's session and publishes the Anonymous transition.
func (s *Service) Logout(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrInvalidToken
	}
	s.stream.Publish(State{Phase: PhaseAnonymous, UserID: userID, At: s.now().UTC()})
	slog.Debug("session ended", "user", userID)
	return nil
}

// Authenticate validates a session token and returns the user it names.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	claims, err := ParseAndValidate(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *Service) startSession(userID, email string, durable bool) (Session, error) {
	ttl := s.ephemeralTTL
	if durable {
		ttl = s.durableTTL
	}
	token, err := GenerateToken(userID, durable, ttl)
	if err != nil {
		return Session{}, fmt.Errorf("issue session token: %w", err)
	}
	now := s.now().UTC()
	s.stream.Publish(State{Phase: PhaseAuthenticated, UserID: userID, At: now})
	return Session{
		UserID:    userID,
		Email:     email,
		Token:     token,
		ExpiresAt: now.Add(ttl),
		Durable:   durable,
	}, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (*docstore.Document, error) {
	docs, err := s.store.Query(ctx, collectionUsers, "",
		[]docstore.Filter{{Field: "email", Op: docstore.OpEqual, Value: email}}, nil)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}
