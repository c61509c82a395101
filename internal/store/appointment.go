package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/amireyal5/calendar/internal/model"
)

const appointmentColumns = `id, title, description, start_time, end_time, employee_id, status, created_at, updated_at`

func (s *Store) AddAppointment(ctx context.Context, a *model.Appointment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO appointments (id, title, description, start_time, end_time, employee_id, status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.Title, a.Description, a.StartTime, a.EndTime, a.EmployeeID, a.Status,
	)
	if err != nil {
		return err
	}
	s.hub.Changed(ctx, collAppointments)
	return nil
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.Description, &a.StartTime, &a.EndTime,
		&a.EmployeeID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateAppointment rewrites content and times. Scoped to the owning
// employee; a mismatched owner reads as not found.
func (s *Store) UpdateAppointment(ctx context.Context, a *model.Appointment) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments
		 SET title=$1, description=$2, start_time=$3, end_time=$4, status=$5, updated_at=NOW()
		 WHERE id=$6 AND employee_id=$7`,
		a.Title, a.Description, a.StartTime, a.EndTime, a.Status, a.ID, a.EmployeeID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.hub.Changed(ctx, collAppointments)
	return nil
}

// UpdateAppointmentStatus is the security desk's single-field check-in
// write. Deliberately not owner-scoped. Writing the current status again
// is a no-op by construction.
func (s *Store) UpdateAppointmentStatus(ctx context.Context, id string, status model.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET status=$1, updated_at=NOW() WHERE id=$2`, status, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.hub.Changed(ctx, collAppointments)
	return nil
}

func (s *Store) DeleteAppointment(ctx context.Context, id, employeeID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM appointments WHERE id=$1 AND employee_id=$2`, id, employeeID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.hub.Changed(ctx, collAppointments)
	return nil
}

// AppointmentsByEmployee returns everything the employee owns, oldest
// start first. The calendar keeps the whole set in memory and slices it
// per displayed month.
func (s *Store) AppointmentsByEmployee(ctx context.Context, employeeID string) ([]model.Appointment, error) {
	return s.queryAppointments(ctx,
		`SELECT `+appointmentColumns+` FROM appointments
		 WHERE employee_id = $1 ORDER BY start_time`, employeeID)
}

// AppointmentsBetween returns appointments whose start falls inside
// [from, to], across all employees. Used by the security desk for "today".
func (s *Store) AppointmentsBetween(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	return s.queryAppointments(ctx,
		`SELECT `+appointmentColumns+` FROM appointments
		 WHERE start_time >= $1 AND start_time <= $2 ORDER BY start_time`, from, to)
}

func (s *Store) queryAppointments(ctx context.Context, sql string, args ...any) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.StartTime, &a.EndTime,
			&a.EmployeeID, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// WatchAppointments is the calendar's live query: all appointments owned
// by one employee.
func (s *Store) WatchAppointments(ctx context.Context, employeeID string) (*Subscription[[]model.Appointment], error) {
	return subscribe(ctx, s, collAppointments, func(ctx context.Context) ([]model.Appointment, error) {
		return s.AppointmentsByEmployee(ctx, employeeID)
	})
}

// WatchDay is the security desk's live range query. The bounds are fixed
// at subscribe time; a board mounted before midnight keeps watching the
// day it was opened on.
func (s *Store) WatchDay(ctx context.Context, from, to time.Time) (*Subscription[[]model.Appointment], error) {
	return subscribe(ctx, s, collAppointments, func(ctx context.Context) ([]model.Appointment, error) {
		return s.AppointmentsBetween(ctx, from, to)
	})
}
