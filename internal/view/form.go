// Package view composes what the screens show: the month grid, the
// appointment form, the security desk's daily board, and the admin roster.
package view

import (
	"errors"
	"fmt"
	"time"

	"github.com/amireyal5/calendar/internal/dateutil"
	"github.com/amireyal5/calendar/internal/model"
)

var (
	ErrMissingFields  = errors.New("fill all required fields")
	ErrEndBeforeStart = errors.New("end must be after start")
	ErrFormBusy       = errors.New("a save is already in flight")
	ErrFormState      = errors.New("not allowed in this form state")
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// FormInput is the raw field set a client submits: a date plus two
// times of day, all strings, exactly as the form collects them.
type FormInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
}

// BuildTimes reconstructs the start and end timestamps from the split
// fields. Both land on the same calendar day.
func BuildTimes(date, startTime, endTime string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout+"T"+timeLayout, date+"T"+startTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrMissingFields, err)
	}
	end, err := time.ParseInLocation(dateLayout+"T"+timeLayout, date+"T"+endTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrMissingFields, err)
	}
	return start, end, nil
}

// ComposeAppointment validates the input and builds the record to write.
// Validation order is fixed: required fields first, then the time
// ordering. On edit the existing status is preserved; a new record
// starts pending.
func ComposeAppointment(in FormInput, existing *model.Appointment, employeeID string, loc *time.Location) (model.Appointment, error) {
	if in.Title == "" || in.Date == "" || in.StartTime == "" || in.EndTime == "" {
		return model.Appointment{}, ErrMissingFields
	}

	start, end, err := BuildTimes(in.Date, in.StartTime, in.EndTime, loc)
	if err != nil {
		return model.Appointment{}, err
	}
	if !end.After(start) {
		return model.Appointment{}, ErrEndBeforeStart
	}

	a := model.Appointment{
		Title:       in.Title,
		Description: in.Description,
		StartTime:   start,
		EndTime:     end,
		EmployeeID:  employeeID,
		Status:      model.StatusPending,
	}
	if existing != nil {
		a.ID = existing.ID
		a.Status = existing.Status
		a.CreatedAt = existing.CreatedAt
	}
	return a, nil
}

// FormState is where the modal is in its lifecycle.
type FormState int

const (
	FormClosed FormState = iota
	FormCreate
	FormEdit
	FormConfirmDelete
	FormSubmitting
)

// Form is the appointment modal: closed → open(create|edit) →
// submitting → closed, with a confirm-delete branch off edit.
type Form struct {
	State FormState
	Input FormInput

	editing *model.Appointment
	prior   FormState // where Done(false) returns to
}

// OpenCreate opens an empty form with the default slot: today, the next
// quarter hour after a ten-minute lead, thirty minutes long.
func (f *Form) OpenCreate(now time.Time) {
	start := dateutil.NextSlot(now)
	end := start.Add(30 * time.Minute)
	f.Input = FormInput{
		Date:      now.Format(dateLayout),
		StartTime: start.Format(timeLayout),
		EndTime:   end.Format(timeLayout),
	}
	f.editing = nil
	f.State = FormCreate
}

// OpenEdit pre-fills the form by splitting the appointment's timestamps
// back into date and time-of-day fields.
func (f *Form) OpenEdit(a model.Appointment) {
	f.Input = FormInput{
		Title:       a.Title,
		Description: a.Description,
		Date:        a.StartTime.Format(dateLayout),
		StartTime:   a.StartTime.Format(timeLayout),
		EndTime:     a.EndTime.Format(timeLayout),
	}
	cp := a
	f.editing = &cp
	f.State = FormEdit
}

// Editing returns the appointment under edit, nil in create mode.
func (f *Form) Editing() *model.Appointment { return f.editing }

// Submit validates and moves to submitting; the caller performs the
// actual save and reports back through Done.
func (f *Form) Submit(employeeID string, loc *time.Location) (model.Appointment, error) {
	switch f.State {
	case FormCreate, FormEdit:
	case FormSubmitting:
		return model.Appointment{}, ErrFormBusy
	default:
		return model.Appointment{}, ErrFormState
	}

	a, err := ComposeAppointment(f.Input, f.editing, employeeID, loc)
	if err != nil {
		return model.Appointment{}, err
	}

	f.prior = f.State
	f.State = FormSubmitting
	return a, nil
}

// RequestDelete asks for confirmation; only an open edit can delete.
func (f *Form) RequestDelete() error {
	if f.State != FormEdit {
		return ErrFormState
	}
	f.State = FormConfirmDelete
	return nil
}

// CancelDelete backs out of the confirmation.
func (f *Form) CancelDelete() {
	if f.State == FormConfirmDelete {
		f.State = FormEdit
	}
}

// ConfirmDelete commits to the delete and moves to submitting.
func (f *Form) ConfirmDelete() (string, error) {
	if f.State != FormConfirmDelete {
		return "", ErrFormState
	}
	f.prior = FormEdit
	f.State = FormSubmitting
	return f.editing.ID, nil
}

// Done reports the outcome of the in-flight operation: success closes
// the form, failure reopens it with the fields intact.
func (f *Form) Done(success bool) {
	if f.State != FormSubmitting {
		return
	}
	if success {
		f.Close()
		return
	}
	f.State = f.prior
}

func (f *Form) Close() {
	f.State = FormClosed
	f.Input = FormInput{}
	f.editing = nil
}
