package handler

import (
	"io"
	"time"

	"timearchitect/services"

	"github.com/gin-gonic/gin"
)

type Subscriber interface {
	Subscribe() (<-chan services.Event, func())
}

type EventsHandler struct {
	bus       Subscriber
	heartbeat time.Duration
}

func NewEventsHandler(bus Subscriber) *EventsHandler {
	return &EventsHandler{bus: bus, heartbeat: 25 * time.Second}
}

// Stream relays bus events as server-sent events. ?user_id= limits the
// stream to that user's events plus global ones such as settings changes.
func (h *EventsHandler) Stream(c *gin.Context) {
	userID := c.Query("user_id")
	events, cancel := h.bus.Subscribe()
	defer cancel()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case event, ok := <-events:
			if !ok {
				return false
			}
			if userID != "" && event.UserID != "" && event.UserID != userID {
				return true
			}
			c.SSEvent(event.Type, event)
			return true
		}
	})
}
