package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/amireyal5/calendar/internal/auth"
	"github.com/amireyal5/calendar/internal/middleware"
	"github.com/amireyal5/calendar/internal/model"
	"github.com/amireyal5/calendar/internal/store"
)

const secret = "middleware-test-secret"

type fakeBackend struct {
	mu      sync.Mutex
	users   map[string]*model.User
	revoked []string
}

func (f *fakeBackend) UserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeBackend) SignOut(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, userID)
	return nil
}

func newRouter(f *fakeBackend, roles ...model.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("", middleware.Auth(secret, f, f, zerolog.Nop()))
	if len(roles) > 0 {
		group = group.Group("", middleware.RequireRoles(roles...))
	}
	group.GET("/probe", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": c.GetString(middleware.UserIDKey)})
	})
	return r
}

func probe(t *testing.T, r *gin.Engine, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, uid string, role model.Role) string {
	t.Helper()
	tok, err := auth.MakeToken(uid, role, secret, time.Minute)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}
	return tok
}

func TestAuthRejectsMissingAndBadTokens(t *testing.T) {
	f := &fakeBackend{users: map[string]*model.User{}}
	r := newRouter(f)

	if w := probe(t, r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status %d", w.Code)
	}
	if w := probe(t, r, "not-a-token"); w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status %d", w.Code)
	}

	wrong, _ := auth.MakeToken("u1", model.RoleAdmin, "other-secret", time.Minute)
	if w := probe(t, r, wrong); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status %d", w.Code)
	}
}

func TestAuthLoadsFreshProfile(t *testing.T) {
	f := &fakeBackend{users: map[string]*model.User{
		"u1": {ID: "u1", Role: model.RoleEmployee},
	}}
	r := newRouter(f, model.RoleAdmin)

	// the token claims admin but the record says employee: the record wins
	if w := probe(t, r, token(t, "u1", model.RoleAdmin)); w.Code != http.StatusForbidden {
		t.Errorf("stale admin claim: status %d, want 403", w.Code)
	}
}

func TestAuthMissingProfileRevokes(t *testing.T) {
	f := &fakeBackend{users: map[string]*model.User{}}
	r := newRouter(f)

	if w := probe(t, r, token(t, "ghost", model.RoleEmployee)); w.Code != http.StatusUnauthorized {
		t.Errorf("missing profile: status %d", w.Code)
	}
	if len(f.revoked) != 1 || f.revoked[0] != "ghost" {
		t.Errorf("revoked = %v, want [ghost]", f.revoked)
	}
}

func TestRequireRoles(t *testing.T) {
	f := &fakeBackend{users: map[string]*model.User{
		"emp": {ID: "emp", Role: model.RoleEmployee},
		"sec": {ID: "sec", Role: model.RoleSecurity},
		"new": {ID: "new", Role: model.RolePending},
	}}
	r := newRouter(f, model.RoleEmployee, model.RoleAdmin)

	if w := probe(t, r, token(t, "emp", model.RoleEmployee)); w.Code != http.StatusOK {
		t.Errorf("employee: status %d", w.Code)
	}
	if w := probe(t, r, token(t, "sec", model.RoleSecurity)); w.Code != http.StatusForbidden {
		t.Errorf("security: status %d", w.Code)
	}
	if w := probe(t, r, token(t, "new", model.RolePending)); w.Code != http.StatusForbidden {
		t.Errorf("pending: status %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := middleware.NewRateLimiter(1, 2)

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("burst of 2 not granted")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("third immediate request allowed")
	}
	// a different client has its own budget
	if !rl.Allow("5.6.7.8") {
		t.Error("fresh client throttled")
	}
}
