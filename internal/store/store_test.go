package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/amireyal5/calendar/internal/model"
	"github.com/amireyal5/calendar/internal/store"
)

func setup(t *testing.T) *store.Store {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(pool.Close)

	if migration, err := os.ReadFile("../../db/migrations/001_init.sql"); err == nil {
		_, _ = pool.Exec(context.Background(), string(migration))
	}

	return store.New(pool, store.NewHub(nil, zerolog.Nop()))
}

func testUser(t *testing.T, s *store.Store, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        fmt.Sprintf("test-%s@test.com", uuid.New().String()[:8]),
		PasswordHash: "x",
		Name:         "Test User",
		Role:         role,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func testAppointment(t *testing.T, s *store.Store, employeeID string, start time.Time) *model.Appointment {
	t.Helper()
	a := &model.Appointment{
		ID:         uuid.New().String(),
		Title:      "Visitor",
		StartTime:  start,
		EndTime:    start.Add(30 * time.Minute),
		EmployeeID: employeeID,
		Status:     model.StatusPending,
	}
	if err := s.AddAppointment(context.Background(), a); err != nil {
		t.Fatalf("add appointment: %v", err)
	}
	return a
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := setup(t)
	u := testUser(t, s, model.RolePending)

	dup := &model.User{ID: uuid.New().String(), Email: u.Email, PasswordHash: "x", Name: "Dup", Role: model.RolePending}
	err := s.CreateUser(context.Background(), dup)
	if !errors.Is(err, store.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserRoundTrip(t *testing.T) {
	s := setup(t)
	u := testUser(t, s, model.RolePending)

	got, err := s.UserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != u.Email || got.Role != model.RolePending {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if err := s.UpdateUserRole(context.Background(), u.ID, model.RoleEmployee); err != nil {
		t.Fatalf("update role: %v", err)
	}
	got, _ = s.UserByID(context.Background(), u.ID)
	if got.Role != model.RoleEmployee {
		t.Errorf("role = %s after update", got.Role)
	}
}

func TestUserByIDNotFound(t *testing.T) {
	s := setup(t)
	_, err := s.UserByID(context.Background(), uuid.New().String())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppointmentOwnerScope(t *testing.T) {
	s := setup(t)
	owner := testUser(t, s, model.RoleEmployee)
	other := testUser(t, s, model.RoleEmployee)
	a := testAppointment(t, s, owner.ID, time.Now().Add(400*time.Hour))

	// someone else's delete must not touch the record
	err := s.DeleteAppointment(context.Background(), a.ID, other.ID)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-owner delete: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteAppointment(context.Background(), a.ID, owner.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestStatusUpdateIdempotent(t *testing.T) {
	s := setup(t)
	owner := testUser(t, s, model.RoleEmployee)
	a := testAppointment(t, s, owner.ID, time.Now().Add(500*time.Hour))

	for i := 0; i < 2; i++ {
		if err := s.UpdateAppointmentStatus(context.Background(), a.ID, model.StatusArrived); err != nil {
			t.Fatalf("status update %d: %v", i, err)
		}
	}
	got, err := s.GetAppointment(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusArrived {
		t.Errorf("status = %s after double arrive", got.Status)
	}
}

func TestWatchAppointmentsPushesOnWrite(t *testing.T) {
	s := setup(t)
	owner := testUser(t, s, model.RoleEmployee)

	sub, err := s.WatchAppointments(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer sub.Cancel()

	first := <-sub.Updates()
	if len(first) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d", len(first))
	}

	testAppointment(t, s, owner.ID, time.Now().Add(600*time.Hour))

	select {
	case snap := <-sub.Updates():
		if len(snap) != 1 {
			t.Errorf("snapshot after write has %d appointments", len(snap))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no snapshot pushed after write")
	}
}

func TestAppointmentsBetween(t *testing.T) {
	s := setup(t)
	owner := testUser(t, s, model.RoleEmployee)

	base := time.Now().Add(700 * time.Hour).Truncate(time.Hour)
	in := testAppointment(t, s, owner.ID, base)
	testAppointment(t, s, owner.ID, base.Add(48*time.Hour))

	got, err := s.AppointmentsBetween(context.Background(), base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	found := false
	for _, a := range got {
		if a.ID == in.ID {
			found = true
		}
		if a.StartTime.After(base.Add(time.Hour)) {
			t.Errorf("out-of-range appointment %s in result", a.ID)
		}
	}
	if !found {
		t.Error("in-range appointment missing from result")
	}
}
