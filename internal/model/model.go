package model

import (
	"errors"
	"time"
)

// ErrUnknownRole rejects role values outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// Role is the access tier an admin assigns to a user. New registrations
// start as RolePending and stay locked out of every view until approved.
type Role string

const (
	RolePending  Role = "pending"
	RoleEmployee Role = "employee"
	RoleSecurity Role = "security"
	RoleAdmin    Role = "admin"

	// RoleUnknown covers role values written out-of-band; sessions
	// carrying it are routed back to the sign-in view.
	RoleUnknown Role = ""
)

// Roles lists every assignable role, in the order the admin selector shows them.
var Roles = []Role{RolePending, RoleEmployee, RoleSecurity, RoleAdmin}

func ParseRole(s string) Role {
	switch Role(s) {
	case RolePending, RoleEmployee, RoleSecurity, RoleAdmin:
		return Role(s)
	}
	return RoleUnknown
}

func (r Role) Valid() bool {
	return ParseRole(string(r)) != RoleUnknown
}

// Status is the visitor check-in outcome for an appointment.
type Status string

const (
	StatusPending Status = "pending"
	StatusArrived Status = "arrived"
	StatusNoShow  Status = "no-show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusArrived, StatusNoShow:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Appointment struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"` // visitor name
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	EmployeeID  string    `json:"employeeId"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RefreshToken is stored hashed; the raw value only ever travels to the client.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	Revoked    bool
	ReplacedBy *string
	CreatedAt  time.Time
}
