package controllers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"messenger-service/middlewares"
	"messenger-service/realtime"
	"messenger-service/services"
	"messenger-service/utils"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamController serves the long-lived event streams. SSE and websocket
// endpoints drain the same hub subscription, so a client can use either.
type StreamController struct {
	service *services.ConversationService
	hub     *realtime.Hub
}

func NewStreamController(service *services.ConversationService, hub *realtime.Hub) *StreamController {
	return &StreamController{service: service, hub: hub}
}

// Stream GET /api/messages/stream
// The subscription is keyed by the caller's messenger id so publishes from
// sends reach it regardless of which identifier the client authenticated
// with. The stream has no idle timeout; the hub heartbeat keeps proxies from
// cutting it.
func (sc *StreamController) Stream(c *gin.Context) {
	handle, err := sc.service.CanonicalCaller(middlewares.CallerID(c))
	if err != nil {
		utils.RespondError(c, statusFor(err), err.Error())
		return
	}

	sub := sc.hub.Subscribe(handle)
	defer sc.hub.Unsubscribe(sub)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case <-sub.Done():
			return false
		case ev := <-sub.Events():
			c.Render(-1, sse.Event{Id: ev.ID, Event: ev.Name, Data: ev.Payload})
			return true
		}
	})
}

// WebSocket GET /ws
func (sc *StreamController) WebSocket(c *gin.Context) {
	handle, err := sc.service.CanonicalCaller(middlewares.CallerID(c))
	if err != nil {
		utils.RespondError(c, statusFor(err), err.Error())
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the handshake failure
		logrus.WithError(err).Debug("websocket upgrade failed")
		return
	}

	sub := sc.hub.Subscribe(handle)
	go sc.writePump(conn, sub)
	go sc.readPump(conn, sub)
}

func (sc *StreamController) writePump(conn *websocket.Conn, sub *realtime.Subscription) {
	defer func() {
		sc.hub.Unsubscribe(sub)
		conn.Close()
	}()
	for {
		select {
		case <-sub.Done():
			return
		case ev := <-sub.Events():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; its job is noticing the disconnect.
func (sc *StreamController) readPump(conn *websocket.Conn, sub *realtime.Subscription) {
	defer func() {
		sc.hub.Unsubscribe(sub)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
