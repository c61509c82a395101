package view

import (
	"context"
	"fmt"

	"github.com/amireyal5/calendar/internal/model"
	"github.com/amireyal5/calendar/internal/store"
)

// AdminStore is the slice of the document store the admin panel uses.
type AdminStore interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	WatchUsers(ctx context.Context) (*store.Subscription[[]model.User], error)
	WatchPendingCount(ctx context.Context) (*store.Subscription[int], error)
	UpdateUserRole(ctx context.Context, id string, role model.Role) error
}

// Admin is the user-management panel: the full roster with pending
// accounts surfaced first, a pending badge count, and role assignment.
type Admin struct {
	store AdminStore
}

func NewAdmin(s AdminStore) *Admin { return &Admin{store: s} }

// PendingFirst moves pending accounts to the front. The partition is
// stable: within each half the incoming order is kept.
func PendingFirst(users []model.User) []model.User {
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if u.Role == model.RolePending {
			out = append(out, u)
		}
	}
	for _, u := range users {
		if u.Role != model.RolePending {
			out = append(out, u)
		}
	}
	return out
}

// Roster lists every account, pending first.
func (a *Admin) Roster(ctx context.Context) ([]model.User, error) {
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return PendingFirst(users), nil
}

// WatchRoster is Roster as a standing query.
func (a *Admin) WatchRoster(ctx context.Context) (*store.Subscription[[]model.User], error) {
	sub, err := a.store.WatchUsers(ctx)
	if err != nil {
		return nil, err
	}

	ordered := make(chan []model.User, 1)
	go func() {
		defer close(ordered)
		for users := range sub.Updates() {
			next := PendingFirst(users)
			select {
			case ordered <- next:
			default:
				select {
				case <-ordered:
				default:
				}
				ordered <- next
			}
		}
	}()
	return store.NewSubscription(ordered, sub.Cancel), nil
}

// WatchPendingCount follows the number of accounts awaiting approval.
func (a *Admin) WatchPendingCount(ctx context.Context) (*store.Subscription[int], error) {
	return a.store.WatchPendingCount(ctx)
}

// ChangeRole assigns a role from the closed set.
func (a *Admin) ChangeRole(ctx context.Context, userID string, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("role %q: %w", role, model.ErrUnknownRole)
	}
	return a.store.UpdateUserRole(ctx, userID, role)
}
