package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mahaj/relay/pkg/model"
	"github.com/mahaj/relay/pkg/registry"
)

// client glues one WebSocket connection to its registry session. Frames are
// processed strictly in arrival order, which is what gives Send its
// per-connection FIFO guarantee.
type client struct {
	gw     *Gateway
	sess   *registry.Session
	conn   *websocket.Conn
	userID string
}

func (c *client) readPump() {
	defer func() {
		c.gw.reg.Unregister(c.sess.ID)
		_ = c.conn.Close()
	}()

	ctx := context.Background()
	pongWait := c.gw.pongWait()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.sess.Touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	protocolErrors := 0
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gw.log.Debug().Err(err).Str("session_id", c.sess.ID).Msg("read loop ended")
			}
			return
		}

		var frame model.Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			if c.protocolError(&protocolErrors, "malformed frame") {
				return
			}
			continue
		}

		if frame.Type == model.FrameHeartbeat {
			c.sess.Touch()
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			protocolErrors = 0
			continue
		}

		reply, err := c.gw.router.HandleFrame(ctx, c.userID, &frame)
		if err != nil {
			if c.protocolError(&protocolErrors, "unknown frame type") {
				return
			}
			continue
		}
		protocolErrors = 0
		if reply != nil {
			c.reply(reply)
		}
	}
}

// protocolError reports one malformed frame back to the peer. It returns
// true when the consecutive-failure threshold is crossed and the connection
// must close as protocol abuse.
func (c *client) protocolError(count *int, detail string) bool {
	*count++
	c.reply(model.ErrorFrame(model.CodeBadFrame, detail, ""))
	if *count < maxProtocolErrors {
		return false
	}
	c.gw.log.Warn().
		Str("user_id", c.userID).
		Str("session_id", c.sess.ID).
		Msg("closing connection: protocol abuse")
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, model.ErrProtocolAbuse.Error()),
		time.Now().Add(writeWait),
	)
	return true
}

// reply queues a frame for this connection only.
func (c *client) reply(frame *model.Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	if err := c.sess.Enqueue(payload); err != nil {
		c.gw.log.Warn().Err(err).Str("session_id", c.sess.ID).Msg("reply dropped")
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.gw.heartbeat)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.sess.Outbound():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.sess.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
