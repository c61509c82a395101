// Package banner implements the transient notification shown after every
// user-visible operation. One message at a time; showing a new message
// restarts the dismiss timer.
package banner

import (
	"sync"
	"time"
)

// DefaultTTL is how long a notice stays up before it clears itself.
const DefaultTTL = 3 * time.Second

type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Error   Severity = "error"
)

type Message struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}

// Banner holds at most one message and clears it after a fixed interval.
// The onClear callback fires once per displayed message, even if Clear is
// also called by hand.
type Banner struct {
	mu      sync.Mutex
	ttl     time.Duration
	onClear func()
	timer   *time.Timer
	current *Message
}

func New(ttl time.Duration, onClear func()) *Banner {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if onClear == nil {
		onClear = func() {}
	}
	return &Banner{ttl: ttl, onClear: onClear}
}

// Show replaces the current message and restarts the dismiss timer.
func (b *Banner) Show(text string, severity Severity) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = &Message{Text: text, Severity: severity}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.ttl, b.Clear)
}

// Current returns the displayed message, or nil when the banner is empty.
func (b *Banner) Current() *Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil
	}
	m := *b.current
	return &m
}

// Clear removes the message immediately. Safe to call any number of times;
// onClear only fires when there was something to clear.
func (b *Banner) Clear() {
	b.mu.Lock()
	if b.current == nil {
		b.mu.Unlock()
		return
	}
	b.current = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	b.onClear()
}

// Stop cancels the pending timer without firing onClear. Used on teardown.
func (b *Banner) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.current = nil
}
