package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/amireyal5/calendar/internal/model"
)

// UserStore is the slice of the document store the gateway needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByID(ctx context.Context, id string) (*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (string, error)
	RefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldID, newID, userID, newHash string, newExpiry time.Time) error
	RevokeRefreshTokens(ctx context.Context, userID string) error
}

// ResetStore keeps short-lived password-reset tokens.
type ResetStore interface {
	SaveResetToken(ctx context.Context, token, userID string, ttl time.Duration) error
	ConsumeResetToken(ctx context.Context, token string) (userID string, err error)
}

// State is one emission of the auth-state feed: a user signed in or out.
type State struct {
	UserID   string
	Role     model.Role
	SignedIn bool
}

// Session is what a successful sign-in hands back to the client.
type Session struct {
	UserID       string     `json:"userId"`
	Name         string     `json:"name"`
	Role         model.Role `json:"role"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

type Config struct {
	Secret        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTokenTTL time.Duration
}

// Gateway verifies credentials and owns session tokens. Constructed once
// at startup and passed explicitly to whatever needs it.
type Gateway struct {
	users  UserStore
	tokens TokenStore
	resets ResetStore
	cfg    Config
	log    zerolog.Logger

	mu       sync.Mutex
	watchers map[uint64]chan State
	nextID   uint64
}

func NewGateway(users UserStore, tokens TokenStore, resets ResetStore, cfg Config, log zerolog.Logger) *Gateway {
	return &Gateway{
		users:    users,
		tokens:   tokens,
		resets:   resets,
		cfg:      cfg,
		log:      log,
		watchers: make(map[uint64]chan State),
	}
}

// SignIn verifies email+password and opens a session. Every credential
// failure collapses to ErrInvalidCredentials; the real cause is only logged.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*Session, error) {
	u, err := g.users.UserByEmail(ctx, email)
	if err != nil {
		g.log.Debug().Err(err).Msg("sign-in lookup failed")
		return nil, ErrInvalidCredentials
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	sess, err := g.openSession(ctx, u)
	if err != nil {
		return nil, err
	}
	g.emit(State{UserID: u.ID, Role: u.Role, SignedIn: true})
	return sess, nil
}

// Register creates the profile document with role pending and deliberately
// opens no session: the account waits for admin approval.
func (g *Gateway) Register(ctx context.Context, name, email, password string) (string, error) {
	if len(password) < 8 {
		return "", ErrWeakPassword
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         model.RolePending,
	}
	if err := g.users.CreateUser(ctx, u); err != nil {
		// store.ErrEmailTaken passes through for the handler to map
		return "", fmt.Errorf("create user: %w", err)
	}
	return u.ID, nil
}

// SignOut revokes every refresh token for the user and broadcasts the
// state change so open session streams shut down.
func (g *Gateway) SignOut(ctx context.Context, userID string) error {
	if err := g.tokens.RevokeRefreshTokens(ctx, userID); err != nil {
		return err
	}
	g.emit(State{UserID: userID, SignedIn: false})
	return nil
}

// Refresh rotates a refresh token and issues a fresh access token.
func (g *Gateway) Refresh(ctx context.Context, raw string) (*Session, error) {
	rt, err := g.tokens.RefreshTokenByHash(ctx, HashRefreshToken(raw))
	if err != nil {
		return nil, ErrBadToken
	}
	if rt.Revoked || time.Now().After(rt.ExpiresAt) {
		return nil, ErrBadToken
	}

	u, err := g.users.UserByID(ctx, rt.UserID)
	if err != nil {
		return nil, ErrBadToken
	}

	newRaw, newHash, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	newID := uuid.New().String()
	if err := g.tokens.RotateRefreshToken(ctx, rt.ID, newID, u.ID, newHash, time.Now().Add(g.cfg.RefreshTTL)); err != nil {
		return nil, err
	}

	access, err := MakeToken(u.ID, u.Role, g.cfg.Secret, g.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	return &Session{UserID: u.ID, Name: u.Name, Role: u.Role, AccessToken: access, RefreshToken: newRaw}, nil
}

// SendPasswordReset stores a reset token and reports success whether or
// not the address exists, so the endpoint leaks nothing about accounts.
func (g *Gateway) SendPasswordReset(ctx context.Context, email string) error {
	u, err := g.users.UserByEmail(ctx, email)
	if err != nil {
		g.log.Debug().Str("email", email).Msg("password reset for unknown address")
		return nil
	}

	raw, _, err := GenerateRefreshToken()
	if err != nil {
		return err
	}
	if err := g.resets.SaveResetToken(ctx, raw, u.ID, g.cfg.ResetTokenTTL); err != nil {
		return err
	}

	// mail delivery is out of band; the token lands in the dispatch log
	g.log.Info().Str("user_id", u.ID).Str("reset_token", raw).Msg("password reset dispatched")
	return nil
}

// ResetPassword consumes a reset token and replaces the password,
// revoking every open session.
func (g *Gateway) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}
	userID, err := g.resets.ConsumeResetToken(ctx, token)
	if err != nil {
		return ErrBadToken
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := g.users.UpdateUserPassword(ctx, userID, hash); err != nil {
		return err
	}
	return g.SignOut(ctx, userID)
}

// StateChanges subscribes to the auth-state feed. Callers must invoke the
// returned cancel on teardown.
func (g *Gateway) StateChanges() (<-chan State, func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextID
	g.nextID++
	ch := make(chan State, 8)
	g.watchers[id] = ch

	cancel := func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.watchers, id)
	}
	return ch, cancel
}

func (g *Gateway) emit(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ch := range g.watchers {
		select {
		case ch <- s:
		default: // slow watcher loses the event rather than blocking sign-in
		}
	}
}

func (g *Gateway) openSession(ctx context.Context, u *model.User) (*Session, error) {
	access, err := MakeToken(u.ID, u.Role, g.cfg.Secret, g.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	rawRefresh, refreshHash, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	if _, err := g.tokens.CreateRefreshToken(ctx, u.ID, refreshHash, time.Now().Add(g.cfg.RefreshTTL)); err != nil {
		return nil, err
	}
	return &Session{UserID: u.ID, Name: u.Name, Role: u.Role, AccessToken: access, RefreshToken: rawRefresh}, nil
}
