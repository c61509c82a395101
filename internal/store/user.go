package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/amireyal5/calendar/internal/model"
)

const userColumns = `id, email, password_hash, name, role, created_at, updated_at`

// CreateUser writes the profile document for a fresh registration.
// The id is the auth identity id; the role is whatever the caller set
// (registration always passes pending).
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, role) VALUES ($1,$2,$3,$4,$5)`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique violation on users.email
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	s.hub.Changed(ctx, collUsers)
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUserRole is the admin's single-field role write.
func (s *Store) UpdateUserRole(ctx context.Context, id string, role model.Role) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET role=$1, updated_at=NOW() WHERE id=$2`, role, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.hub.Changed(ctx, collUsers)
	return nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash=$1, updated_at=NOW() WHERE id=$2`, passwordHash, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) countPendingUsers(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE role = $1`, model.RolePending,
	).Scan(&n)
	return n, err
}

// WatchUsers is the admin roster subscription: the full user list, pushed
// again after every user write.
func (s *Store) WatchUsers(ctx context.Context) (*Subscription[[]model.User], error) {
	return subscribe(ctx, s, collUsers, s.ListUsers)
}

// WatchPendingCount feeds the admin approval badge.
func (s *Store) WatchPendingCount(ctx context.Context) (*Subscription[int], error) {
	return subscribe(ctx, s, collUsers, s.countPendingUsers)
}

// WatchUser follows a single profile document. A nil snapshot means the
// record is gone, which a session treats as a forced sign-out.
func (s *Store) WatchUser(ctx context.Context, id string) (*Subscription[*model.User], error) {
	return subscribe(ctx, s, collUsers, func(ctx context.Context) (*model.User, error) {
		u, err := s.UserByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return u, err
	})
}
