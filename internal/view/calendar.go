package view

import (
	"context"
	"sort"
	"time"

	"github.com/amireyal5/calendar/internal/dateutil"
	"github.com/amireyal5/calendar/internal/model"
	"github.com/amireyal5/calendar/internal/store"
)

// Cell is one box of the month grid. Day 0 is a blank: leading padding
// before the first weekday or trailing padding after the last day.
type Cell struct {
	Day          int                 `json:"day"`
	Today        bool                `json:"today,omitempty"`
	Appointments []model.Appointment `json:"appointments,omitempty"`
}

// MonthGrid is a month laid out in calendar weeks, Sunday first.
type MonthGrid struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Cells []Cell `json:"cells"`
}

// minimum grid height: five full weeks
const minGridCells = 35

// BuildMonthGrid lays the month out week by week. Leading blanks align
// day 1 with its weekday; the tail is padded to whole weeks and never
// fewer than 35 cells, so the grid keeps a stable height across months.
func BuildMonthGrid(year int, month time.Month, appointments []model.Appointment, now time.Time) MonthGrid {
	grid := MonthGrid{Year: year, Month: int(month)}

	loc := now.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	for i := 0; i < dateutil.FirstWeekdayOfMonth(first); i++ {
		grid.Cells = append(grid.Cells, Cell{})
	}

	for day := 1; day <= dateutil.DaysInMonth(first); day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, loc)
		cell := Cell{Day: day, Today: dateutil.SameDay(date, now)}
		for _, a := range appointments {
			if dateutil.SameDay(a.StartTime.In(loc), date) {
				cell.Appointments = append(cell.Appointments, a)
			}
		}
		sort.SliceStable(cell.Appointments, func(i, j int) bool {
			return cell.Appointments[i].StartTime.Before(cell.Appointments[j].StartTime)
		})
		grid.Cells = append(grid.Cells, cell)
	}

	for len(grid.Cells)%7 != 0 || len(grid.Cells) < minGridCells {
		grid.Cells = append(grid.Cells, Cell{})
	}
	return grid
}

// CalendarStore is the slice of the document store the calendar screen reads.
type CalendarStore interface {
	AppointmentsByEmployee(ctx context.Context, employeeID string) ([]model.Appointment, error)
	WatchAppointments(ctx context.Context, employeeID string) (*store.Subscription[[]model.Appointment], error)
}

// Calendar is an employee's month view over their own appointments.
type Calendar struct {
	store CalendarStore
}

func NewCalendar(s CalendarStore) *Calendar { return &Calendar{store: s} }

// Month builds the grid for one employee and month.
func (c *Calendar) Month(ctx context.Context, employeeID string, year int, month time.Month, now time.Time) (MonthGrid, error) {
	appts, err := c.store.AppointmentsByEmployee(ctx, employeeID)
	if err != nil {
		return MonthGrid{}, err
	}
	return BuildMonthGrid(year, month, appts, now), nil
}

// WatchMonth is Month as a standing query: a grid snapshot now and after
// every change to the employee's appointments.
func (c *Calendar) WatchMonth(ctx context.Context, employeeID string, year int, month time.Month, now func() time.Time) (*store.Subscription[MonthGrid], error) {
	sub, err := c.store.WatchAppointments(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	grids := make(chan MonthGrid, 1)
	go func() {
		defer close(grids)
		for appts := range sub.Updates() {
			grid := BuildMonthGrid(year, month, appts, now())
			// newest grid wins when the consumer lags
			select {
			case grids <- grid:
			default:
				select {
				case <-grids:
				default:
				}
				grids <- grid
			}
		}
	}()
	return store.NewSubscription(grids, sub.Cancel), nil
}
