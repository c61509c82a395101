// Package store is the document layer: two collections (users,
// appointments) plus the refresh-token table backing the auth gateway.
// Every write is a single-document operation; readers that need to stay
// current open a live subscription instead of polling.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	collUsers        = "users"
	collAppointments = "appointments"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

type Store struct {
	pool *pgxpool.Pool
	hub  *Hub
}

func New(pool *pgxpool.Pool, hub *Hub) *Store {
	return &Store{pool: pool, hub: hub}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PurgeRefreshTokens drops revoked and expired refresh tokens. Run by the
// nightly janitor.
func (s *Store) PurgeRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE revoked = true OR expires_at < $1`, now,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
