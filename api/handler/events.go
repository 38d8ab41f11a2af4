package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sellerwatch/events"
)

// keepAlive is the interval between SSE comment frames on an idle stream.
const keepAlive = 25 * time.Second

// Subscriber hands out event streams.
type Subscriber interface {
	Subscribe() (<-chan events.Event, func())
}

// Events returns a handler for GET /api/v1/events, a Server-Sent Events
// stream of task-refresh and snapshot-refresh signals.
func Events(hub Subscriber) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, cancel := hub.Subscribe()
		defer cancel()

		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		ctx := c.Request.Context()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case ev, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent(ev.Type, ev)
				return true
			case <-ticker.C:
				_, _ = io.WriteString(w, ": ping\n\n")
				return true
			}
		})
	}
}
