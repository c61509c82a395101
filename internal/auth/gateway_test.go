package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/amireyal5/calendar/internal/auth"
	"github.com/amireyal5/calendar/internal/model"
	"github.com/amireyal5/calendar/internal/store"
)

// in-memory stand-ins for the document store slices the gateway consumes

type fakeUsers struct {
	mu    sync.Mutex
	byID  map[string]*model.User
	byEml map[string]*model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*model.User{}, byEml: map[string]*model.User{}}
}

func (f *fakeUsers) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEml[u.Email]; ok {
		return store.ErrEmailTaken
	}
	cp := *u
	cp.CreatedAt = time.Now()
	f.byID[u.ID] = &cp
	f.byEml[u.Email] = &cp
	return nil
}

func (f *fakeUsers) UserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEml[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdateUserPassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

type fakeTokens struct {
	mu     sync.Mutex
	byHash map[string]*model.RefreshToken
	nextID int
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{byHash: map[string]*model.RefreshToken{}}
}

func (f *fakeTokens) CreateRefreshToken(_ context.Context, userID, hash string, exp time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := string(rune('a' + f.nextID))
	f.byHash[hash] = &model.RefreshToken{ID: id, UserID: userID, TokenHash: hash, ExpiresAt: exp}
	return id, nil
}

func (f *fakeTokens) RefreshTokenByHash(_ context.Context, hash string) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.byHash[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rt
	return &cp, nil
}

func (f *fakeTokens) RotateRefreshToken(_ context.Context, oldID, newID, userID, newHash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rt := range f.byHash {
		if rt.ID == oldID {
			rt.Revoked = true
		}
	}
	f.byHash[newHash] = &model.RefreshToken{ID: newID, UserID: userID, TokenHash: newHash, ExpiresAt: exp}
	return nil
}

func (f *fakeTokens) RevokeRefreshTokens(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rt := range f.byHash {
		if rt.UserID == userID {
			rt.Revoked = true
		}
	}
	return nil
}

func (f *fakeTokens) activeCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rt := range f.byHash {
		if rt.UserID == userID && !rt.Revoked {
			n++
		}
	}
	return n
}

func newGateway(t *testing.T) (*auth.Gateway, *fakeUsers, *fakeTokens) {
	t.Helper()
	users := newFakeUsers()
	tokens := newFakeTokens()
	g := auth.NewGateway(users, tokens, auth.NewMemoryResetStore(), auth.Config{
		Secret:        "test-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		ResetTokenTTL: time.Hour,
	}, zerolog.Nop())
	return g, users, tokens
}

func register(t *testing.T, g *auth.Gateway, email string) string {
	t.Helper()
	id, err := g.Register(context.Background(), "Test User", email, "testpass123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return id
}

func TestRegisterCreatesPendingUserWithoutSession(t *testing.T) {
	g, users, tokens := newGateway(t)

	id := register(t, g, "new@test.com")

	u, err := users.UserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if u.Role != model.RolePending {
		t.Errorf("role = %s, want pending", u.Role)
	}
	if u.PasswordHash == "testpass123" || u.PasswordHash == "" {
		t.Error("password stored unhashed")
	}
	// registration must not leave an open session behind
	if n := tokens.activeCount(id); n != 0 {
		t.Errorf("%d active refresh tokens after register, want 0", n)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	g, _, _ := newGateway(t)
	register(t, g, "dup@test.com")

	_, err := g.Register(context.Background(), "Second", "dup@test.com", "testpass123")
	if !errors.Is(err, store.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	g, _, _ := newGateway(t)
	_, err := g.Register(context.Background(), "X", "weak@test.com", "short")
	if !errors.Is(err, auth.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestSignInSuccess(t *testing.T) {
	g, _, _ := newGateway(t)
	id := register(t, g, "login@test.com")

	sess, err := g.SignIn(context.Background(), "login@test.com", "testpass123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if sess.UserID != id || sess.AccessToken == "" || sess.RefreshToken == "" {
		t.Fatalf("incomplete session: %+v", sess)
	}
	if sess.Role != model.RolePending {
		t.Errorf("role = %s", sess.Role)
	}

	claims, err := auth.ParseToken(sess.AccessToken, "test-secret")
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != id {
		t.Errorf("uid claim = %s", claims.UserID)
	}
}

func TestSignInGenericFailure(t *testing.T) {
	g, _, _ := newGateway(t)
	register(t, g, "known@test.com")

	// wrong password and unknown email collapse to the same error
	_, err1 := g.SignIn(context.Background(), "known@test.com", "wrongpassword")
	_, err2 := g.SignIn(context.Background(), "nobody@test.com", "testpass123")

	if !errors.Is(err1, auth.ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err1)
	}
	if !errors.Is(err2, auth.ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v", err2)
	}
}

func TestSignOutRevokesTokensAndEmitsState(t *testing.T) {
	g, _, tokens := newGateway(t)
	id := register(t, g, "out@test.com")
	if _, err := g.SignIn(context.Background(), "out@test.com", "testpass123"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	states, cancel := g.StateChanges()
	defer cancel()

	if err := g.SignOut(context.Background(), id); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if n := tokens.activeCount(id); n != 0 {
		t.Errorf("%d active tokens after sign out", n)
	}

	select {
	case st := <-states:
		if st.UserID != id || st.SignedIn {
			t.Errorf("state = %+v", st)
		}
	case <-time.After(time.Second):
		t.Fatal("no auth-state emission on sign out")
	}
}

func TestRefreshRotates(t *testing.T) {
	g, _, _ := newGateway(t)
	register(t, g, "rot@test.com")
	sess, err := g.SignIn(context.Background(), "rot@test.com", "testpass123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	next, err := g.Refresh(context.Background(), sess.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == sess.RefreshToken {
		t.Error("refresh token not rotated")
	}

	// the old token is single-use
	if _, err := g.Refresh(context.Background(), sess.RefreshToken); !errors.Is(err, auth.ErrBadToken) {
		t.Errorf("reused token: got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	users := newFakeUsers()
	tokens := newFakeTokens()
	resets := auth.NewMemoryResetStore()
	g := auth.NewGateway(users, tokens, resets, auth.Config{
		Secret: "test-secret", AccessTTL: 15 * time.Minute,
		RefreshTTL: 24 * time.Hour, ResetTokenTTL: time.Hour,
	}, zerolog.Nop())

	id := register(t, g, "reset@test.com")

	// unknown address still reports success (no enumeration signal)
	if err := g.SendPasswordReset(context.Background(), "ghost@test.com"); err != nil {
		t.Fatalf("reset for unknown address: %v", err)
	}

	// seed a token directly; dispatch normally happens out of band
	if err := resets.SaveResetToken(context.Background(), "tok-1", id, time.Hour); err != nil {
		t.Fatalf("save token: %v", err)
	}
	if err := g.ResetPassword(context.Background(), "tok-1", "newpass1234"); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	if _, err := g.SignIn(context.Background(), "reset@test.com", "testpass123"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Error("old password still accepted after reset")
	}
	if _, err := g.SignIn(context.Background(), "reset@test.com", "newpass1234"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	// a token is single use
	if err := g.ResetPassword(context.Background(), "tok-1", "anotherpass1"); !errors.Is(err, auth.ErrBadToken) {
		t.Errorf("reused reset token: got %v", err)
	}
	// garbage token rejected
	if err := g.ResetPassword(context.Background(), "no-such-token", "newpass1234"); !errors.Is(err, auth.ErrBadToken) {
		t.Errorf("bad token: got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := auth.MakeToken("uid-1", model.RoleEmployee, "secret", 15*time.Minute)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}

	claims, err := auth.ParseToken(tok, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "uid-1" || claims.Role != model.RoleEmployee {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := auth.ParseToken(tok, "wrong-secret"); err == nil {
		t.Error("wrong secret accepted")
	}
	if _, err := auth.ParseToken("not.a.token", "secret"); err == nil {
		t.Error("garbage token accepted")
	}
}
