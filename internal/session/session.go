// Package session owns what happens between "some identity signed in" and
// "a view is on screen": loading the profile record, routing by role, and
// keeping an open session current as the profile changes underneath it.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/amireyal5/calendar/internal/auth"
	"github.com/amireyal5/calendar/internal/banner"
	"github.com/amireyal5/calendar/internal/model"
	"github.com/amireyal5/calendar/internal/store"
)

// View names the screen a session is routed to.
type View string

const (
	ViewLogin    View = "login"
	ViewWaiting  View = "waiting"
	ViewCalendar View = "calendar"
	ViewSecurity View = "security"
	ViewAdmin    View = "admin"
)

// Phase is the controller's state machine.
type Phase int

const (
	PhaseChecking Phase = iota
	PhaseAuthenticated
	PhaseUnauthenticated
)

// ErrNoProfile marks an authenticated identity with no user record: an
// integrity error that forces a sign-out.
var ErrNoProfile = errors.New("no profile record for identity")

// RouteFor maps a role to its view. Anything outside the closed enum
// lands back on the sign-in view.
func RouteFor(role model.Role) View {
	switch role {
	case model.RolePending:
		return ViewWaiting
	case model.RoleEmployee:
		return ViewCalendar
	case model.RoleSecurity:
		return ViewSecurity
	case model.RoleAdmin:
		return ViewAdmin
	default:
		return ViewLogin
	}
}

// ProfileStore loads user records.
type ProfileStore interface {
	UserByID(ctx context.Context, id string) (*model.User, error)
}

// ProfileWatcher follows a single user record; nil snapshots mean deleted.
type ProfileWatcher interface {
	WatchUser(ctx context.Context, id string) (*store.Subscription[*model.User], error)
}

// Authenticator is the slice of the auth gateway the controller needs.
type Authenticator interface {
	SignOut(ctx context.Context, userID string) error
	StateChanges() (<-chan auth.State, func())
}

// Event is one emission of an open session stream. A non-nil Notice is a
// transient banner; it is followed by an event without one once the
// banner's dismiss timer fires.
type Event struct {
	View      View            `json:"view"`
	User      *model.User     `json:"user,omitempty"`
	SignedOut bool            `json:"signedOut,omitempty"`
	Notice    *banner.Message `json:"notice,omitempty"`
}

// Controller drives one client's session. Construct one per connection.
type Controller struct {
	auth     Authenticator
	profiles ProfileStore
	watcher  ProfileWatcher
	log      zerolog.Logger

	// NoticeTTL overrides how long stream notices stay up; zero means
	// banner.DefaultTTL.
	NoticeTTL time.Duration

	phase Phase
}

func NewController(a Authenticator, profiles ProfileStore, watcher ProfileWatcher, log zerolog.Logger) *Controller {
	return &Controller{
		auth:     a,
		profiles: profiles,
		watcher:  watcher,
		log:      log,
		phase:    PhaseChecking,
	}
}

func (c *Controller) Phase() Phase { return c.phase }

// Bootstrap resolves a signed-in identity to its profile and view. A
// missing record is treated as corrupt state: the identity is signed out
// and the caller gets ErrNoProfile, with nothing user-facing beyond the
// generic unauthenticated view.
func (c *Controller) Bootstrap(ctx context.Context, userID string) (*model.User, View, error) {
	c.phase = PhaseChecking

	u, err := c.profiles.UserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		c.log.Error().Str("user_id", userID).Msg("authenticated identity has no profile record, forcing sign-out")
		if err := c.auth.SignOut(ctx, userID); err != nil {
			c.log.Warn().Err(err).Msg("forced sign-out failed")
		}
		c.phase = PhaseUnauthenticated
		return nil, ViewLogin, ErrNoProfile
	}
	if err != nil {
		c.phase = PhaseUnauthenticated
		return nil, ViewLogin, err
	}

	view := RouteFor(u.Role)
	if view == ViewLogin {
		c.log.Warn().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("unknown role, routing to sign-in")
		c.phase = PhaseUnauthenticated
		return u, ViewLogin, nil
	}

	c.phase = PhaseAuthenticated
	return u, view, nil
}

// Stream bootstraps and then follows the session until ctx ends: profile
// edits re-emit the current view, a role change flips it live, deleting
// the record or a sign-out elsewhere ends the session. The channel closes
// on teardown.
func (c *Controller) Stream(ctx context.Context, userID string) (<-chan Event, error) {
	u, view, err := c.Bootstrap(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub, err := c.watcher.WatchUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	states, stopStates := c.auth.StateChanges()

	events := make(chan Event, 4)
	events <- Event{View: view, User: u}

	// clearCh lets the banner's dismiss timer re-enter the stream loop
	// instead of touching the channel from the timer goroutine
	clearCh := make(chan struct{}, 1)
	notices := banner.New(c.NoticeTTL, func() {
		select {
		case clearCh <- struct{}{}:
		default:
		}
	})

	go func() {
		defer close(events)
		defer sub.Cancel()
		defer stopStates()
		defer notices.Stop()

		cur := Event{View: view, User: u}
		for {
			select {
			case <-ctx.Done():
				return

			case <-clearCh:
				// banner expired, re-emit the view without it
				events <- cur

			case st := <-states:
				if st.UserID != userID || st.SignedIn {
					continue
				}
				// signed out elsewhere
				c.phase = PhaseUnauthenticated
				events <- Event{View: ViewLogin, SignedOut: true}
				return

			case snapshot, ok := <-sub.Updates():
				if !ok {
					return
				}
				if snapshot == nil {
					// record deleted out from under the session
					c.log.Error().Str("user_id", userID).Msg("profile record disappeared, ending session")
					if err := c.auth.SignOut(ctx, userID); err != nil {
						c.log.Warn().Err(err).Msg("forced sign-out failed")
					}
					c.phase = PhaseUnauthenticated
					events <- Event{View: ViewLogin, SignedOut: true}
					return
				}
				next := RouteFor(snapshot.Role)
				if next == ViewLogin {
					c.phase = PhaseUnauthenticated
					events <- Event{View: ViewLogin, SignedOut: true}
					return
				}
				ev := Event{View: next, User: snapshot}
				if next != cur.View {
					notices.Show("access level updated", banner.Info)
					ev.Notice = notices.Current()
				}
				cur = Event{View: next, User: snapshot}
				events <- ev
			}
		}
	}()

	return events, nil
}
