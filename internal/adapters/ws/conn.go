// Package ws carries the binary relay protocol over WebSocket binary
// messages. Message boundaries mean nothing: every message is one more chunk
// of the frame stream.
package ws

import (
	"io"
	"sync"
	"time"

	"github.com/dkeye/VoiceRelay/internal/adapters/outbox"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	WriteTimeout time.Duration
	SendQueue    int
	MaxPayload   uint32
}

func (o Options) withDefaults() Options {
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	return o
}

// pongWait is how long a peer may stay silent before the read fails.
func (o Options) pongWait() time.Duration { return o.PingPeriod * 10 / 9 }

type Conn struct {
	*outbox.Outbox
	ws        *websocket.Conn
	opts      Options
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, opts Options) *Conn {
	c := &Conn{
		Outbox: outbox.New(opts.SendQueue),
		ws:     ws,
		opts:   opts,
	}
	if opts.ReadLimit > 0 {
		ws.SetReadLimit(opts.ReadLimit)
	}
	_ = ws.SetReadDeadline(time.Now().Add(opts.pongWait()))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(opts.pongWait()))
	})
	return c
}

// ReadChunk returns the next binary message. Text messages are skipped and
// a close from the peer reads as io.EOF.
func (c *Conn) ReadChunk() ([]byte, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil, io.EOF
			}
			return nil, err
		}
		if mt != websocket.BinaryMessage {
			log.Debug().Str("module", "ws").Int("type", mt).Msg("non-binary message ignored")
			continue
		}
		return data, nil
	}
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.Outbox.Close()
		_ = c.ws.Close()
	})
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case p, ok := <-c.C():
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				log.Debug().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
				log.Warn().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				log.Debug().Err(err).Str("module", "ws").Msg("ping failed")
				return
			}
		}
	}
}
