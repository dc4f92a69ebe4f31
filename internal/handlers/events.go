package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/gorilla/websocket"

	"luckydraw/internal/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Events upgrades to a websocket and streams the session's draw events. The
// first message is the current draw status so late joiners can catch up.
func (h *HTTPHandler) Events(c *gin.Context) {
	tenant := tenantID(c)

	// Subscribe before reading the status so no event falls between the two.
	events, unsubscribe := h.hub.Subscribe(tenant)
	defer unsubscribe()
	status := h.session(c).Draws.Status()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warningf("Websocket upgrade failed for tenant %s: %v", tenant, err)
		return
	}
	defer conn.Close()

	// The read loop only exists to notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(ev notify.Event) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			logger.Warningf("Websocket write failed for tenant %s: %v", tenant, err)
			return false
		}
		return true
	}

	if !write(notify.Event{Type: notify.EventDrawStatus, Data: status}) {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !write(ev) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
