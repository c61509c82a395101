package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/amireyal5/calendar/internal/store"
)

// streamSub forwards every snapshot of a standing query as a
// server-sent event until the client disconnects or the subscription
// closes. Events carry full snapshots; a reconnecting client just
// starts over from the next one.
func streamSub[T any](c *gin.Context, event string, sub *store.Subscription[T]) {
	defer sub.Cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snapshot, ok := <-sub.Updates():
			if !ok {
				return false
			}
			c.SSEvent(event, snapshot)
			return true
		}
	})
}
