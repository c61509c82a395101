package store

import (
	"context"
	"sync"
)

// Subscription is a standing query: the first receive on Updates is the
// initial snapshot, every later receive is the full current result set
// after a change. Snapshots arrive in emit order; when the consumer lags,
// stale pending snapshots are replaced rather than queued. Cancel (or
// cancelling the parent context) tears the subscription down and closes
// Updates.
type Subscription[T any] struct {
	updates chan T

	once   sync.Once
	cancel func()
}

// NewSubscription adapts an existing snapshot feed into a Subscription.
// Alternative store implementations and test fakes use it; the Postgres
// store builds its subscriptions internally.
func NewSubscription[T any](updates chan T, cancel func()) *Subscription[T] {
	if cancel == nil {
		cancel = func() {}
	}
	return &Subscription[T]{updates: updates, cancel: cancel}
}

func (s *Subscription[T]) Updates() <-chan T { return s.updates }

func (s *Subscription[T]) Cancel() { s.once.Do(s.cancel) }

// coalescing send: at most one pending snapshot, newest wins
func (s *Subscription[T]) push(v T) {
	for {
		select {
		case s.updates <- v:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

// subscribe runs the query once for the initial snapshot, then re-runs it
// after every change notice for the collection. A failed re-run is logged
// and skipped; the subscription stays open with its last good snapshot.
func subscribe[T any](ctx context.Context, s *Store, collection string, query func(context.Context) (T, error)) (*Subscription[T], error) {
	first, err := query(ctx)
	if err != nil {
		return nil, err
	}

	notices, stopListening := s.hub.listen(collection)
	ctx, cancelCtx := context.WithCancel(ctx)

	sub := &Subscription[T]{
		updates: make(chan T, 1),
		cancel: func() {
			stopListening()
			cancelCtx()
		},
	}
	sub.updates <- first

	go func() {
		defer close(sub.updates)
		for {
			select {
			case <-ctx.Done():
				return
			case <-notices:
				snapshot, err := query(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.hub.log.Warn().Err(err).Str("collection", collection).Msg("subscription requery failed")
					continue
				}
				sub.push(snapshot)
			}
		}
	}()

	return sub, nil
}
