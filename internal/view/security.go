package view

import (
	"context"
	"errors"
	"time"

	"github.com/amireyal5/calendar/internal/dateutil"
	"github.com/amireyal5/calendar/internal/model"
	"github.com/amireyal5/calendar/internal/store"
)

// ErrBadStatus rejects a desk update outside the two allowed marks.
var ErrBadStatus = errors.New("status must be arrived or no-show")

// UnknownEmployeeName stands in when an appointment points at a user
// record that no longer exists.
const UnknownEmployeeName = "Unknown"

// BoardRow is one line of the security desk's daily board: the
// appointment plus the resolved employee name.
type BoardRow struct {
	Appointment  model.Appointment `json:"appointment"`
	EmployeeName string            `json:"employeeName"`
}

// SecurityStore is the slice of the document store the desk reads.
type SecurityStore interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	WatchDay(ctx context.Context, from, to time.Time) (*store.Subscription[[]model.Appointment], error)
	UpdateAppointmentStatus(ctx context.Context, id string, status model.Status) error
}

// Board is the security desk: today's appointments with employee names
// resolved against a roster loaded once up front. The appointment
// subscription only opens after the roster has arrived, so rows never
// render with every name missing.
type Board struct {
	store SecurityStore
}

func NewBoard(s SecurityStore) *Board { return &Board{store: s} }

func buildRows(appts []model.Appointment, names map[string]string) []BoardRow {
	rows := make([]BoardRow, 0, len(appts))
	for _, a := range appts {
		name, ok := names[a.EmployeeID]
		if !ok {
			name = UnknownEmployeeName
		}
		rows = append(rows, BoardRow{Appointment: a, EmployeeName: name})
	}
	return rows
}

// WatchToday loads the roster, then follows the day's appointments.
// Day bounds are fixed from now at subscribe time.
func (b *Board) WatchToday(ctx context.Context, now time.Time) (*store.Subscription[[]BoardRow], error) {
	users, err := b.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	from, to := dateutil.DayBounds(now)
	sub, err := b.store.WatchDay(ctx, from, to)
	if err != nil {
		return nil, err
	}

	rows := make(chan []BoardRow, 1)
	go func() {
		defer close(rows)
		for appts := range sub.Updates() {
			next := buildRows(appts, names)
			select {
			case rows <- next:
			default:
				select {
				case <-rows:
				default:
				}
				rows <- next
			}
		}
	}()
	return store.NewSubscription(rows, sub.Cancel), nil
}

// SetStatus records a desk mark. Only arrived and no-show are desk
// operations; everything else belongs to the owning employee.
func (b *Board) SetStatus(ctx context.Context, appointmentID string, status model.Status) error {
	if status != model.StatusArrived && status != model.StatusNoShow {
		return ErrBadStatus
	}
	return b.store.UpdateAppointmentStatus(ctx, appointmentID, status)
}
