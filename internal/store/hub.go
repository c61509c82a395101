package store

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const changeChannel = "calendar:changes"

// Hub fans out per-collection change notices to live subscriptions.
// Local writes always notify local listeners directly; when a Redis client
// is attached, notices also travel over pub/sub so peer instances re-run
// their queries too. Messages are tagged with an origin id so an instance
// never double-notifies itself.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[uint64]chan struct{}
	nextID uint64

	origin string
	rdb    *redis.Client
	log    zerolog.Logger
}

func NewHub(rdb *redis.Client, log zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[uint64]chan struct{}),
		origin: uuid.NewString(),
		rdb:    rdb,
		log:    log,
	}
}

// Run consumes the cross-instance change feed until ctx is cancelled.
// A no-op without Redis.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		return
	}
	sub := h.rdb.Subscribe(ctx, changeChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			origin, collection, found := strings.Cut(msg.Payload, "|")
			if !found || origin == h.origin {
				continue
			}
			h.notify(collection)
		}
	}
}

// Changed records a write to a collection: local listeners wake up
// immediately, peers hear about it over pub/sub.
func (h *Hub) Changed(ctx context.Context, collection string) {
	h.notify(collection)
	if h.rdb == nil {
		return
	}
	if err := h.rdb.Publish(ctx, changeChannel, h.origin+"|"+collection).Err(); err != nil {
		h.log.Warn().Err(err).Str("collection", collection).Msg("change publish failed")
	}
}

func (h *Hub) notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[collection] {
		select {
		case ch <- struct{}{}:
		default: // listener already has a pending notice
		}
	}
}

// listen registers a change listener for a collection. The returned cancel
// must be called on teardown.
func (h *Hub) listen(collection string) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan struct{}, 1)
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[uint64]chan struct{})
	}
	h.subs[collection][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[collection], id)
	}
	return ch, cancel
}
