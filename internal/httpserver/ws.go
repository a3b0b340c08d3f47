package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Chious/fm-hangman-game/internal/game"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// frame is one message pushed to the client.
type frame struct {
	Type string `json:"type"` // "state" | "cue"
	Data any    `json:"data"`
}

// inbound is a message read from the client.
type inbound struct {
	Type   string `json:"type"` // "guess"
	Letter string `json:"letter"`
}

// wsClient is one live stream. Only the write pump touches the connection
// for data frames.
type wsClient struct {
	conn *websocket.Conn
	send chan frame
	done chan struct{}
	once sync.Once
	log  zerolog.Logger
}

// push queues f without blocking; a client too slow to drain its buffer loses frames.
func (c *wsClient) push(f frame) {
	select {
	case <-c.done:
	case c.send <- f:
	default:
		c.log.Warn().Str("type", f.Type).Msg("ws send buffer full, frame dropped")
	}
}

func (c *wsClient) stop() { c.once.Do(func() { close(c.done) }) }

// handleWS streams the session's state snapshots and cues, and accepts
// {"type":"guess","letter":"x"} messages.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		hlog.FromRequest(r).Warn().Err(err).Msg("ws upgrade")
		return
	}
	c := &wsClient{
		conn: conn,
		send: make(chan frame, sendBuffer),
		done: make(chan struct{}),
		log:  hlog.FromRequest(r).With().Str("session", sess.ID).Logger(),
	}

	unsubscribe := sess.Engine.Subscribe(func(snap game.Snapshot) { c.push(frame{Type: "state", Data: snap}) })
	detach := sess.Cues.Attach(func(cu game.Cue) { c.push(frame{Type: "cue", Data: cu}) })
	forget := sess.OnClose(c.stop)
	c.push(frame{Type: "state", Data: sess.Engine.Snapshot()})

	go c.writePump()
	c.readPump(sess.Engine, func() error { return s.sessions.Touch(r.Context(), sess.ID) })

	forget()
	unsubscribe()
	detach()
	c.stop()
	c.log.Debug().Msg("ws closed")
}

// readPump applies inbound guesses to e. Every frame counts as activity and
// calls touch; the pump stops once the session is gone.
func (c *wsClient) readPump(e *game.Engine, touch func() error) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("ws read")
			}
			return
		}
		if err := touch(); err != nil {
			c.log.Debug().Err(err).Msg("ws session gone")
			return
		}
		var in inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			c.log.Debug().Err(err).Msg("ws bad message")
			continue
		}
		switch in.Type {
		case "guess":
			e.GuessLetter(in.Letter)
		default:
			c.log.Debug().Str("type", in.Type).Msg("ws unknown message type")
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.stop()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.stop()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
