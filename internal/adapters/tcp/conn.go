package tcp

import (
	"net"
	"sync"
	"time"

	"github.com/dkeye/VoiceRelay/internal/adapters/outbox"
	"github.com/rs/zerolog/log"
)

// Conn is one accepted TCP connection. Reads happen on the session's
// goroutine through ReadChunk; writes are drained from the outbox by
// writePump so broadcasters never block on a slow socket.
type Conn struct {
	*outbox.Outbox
	conn         net.Conn
	buf          []byte
	writeTimeout time.Duration
	closeOnce    sync.Once
}

func newConn(c net.Conn, opts Options) *Conn {
	return &Conn{
		Outbox:       outbox.New(opts.SendQueue),
		conn:         c,
		buf:          make([]byte, opts.ReadBuffer),
		writeTimeout: opts.WriteTimeout,
	}
}

// ReadChunk returns whatever the socket delivered. The slice is reused by
// the next call.
func (c *Conn) ReadChunk() ([]byte, error) {
	n, err := c.conn.Read(c.buf)
	return c.buf[:n], err
}

// Close stops the outbox and the socket. Safe to call from any goroutine.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.Outbox.Close()
		_ = c.conn.Close()
	})
}

func (c *Conn) writePump() {
	for p := range c.C() {
		if c.writeTimeout > 0 {
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				log.Debug().Err(err).Str("module", "tcp").Msg("writePump set deadline")
				c.Close()
				return
			}
		}
		if _, err := c.conn.Write(p); err != nil {
			log.Warn().Err(err).Str("module", "tcp").Str("remote", c.conn.RemoteAddr().String()).Msg("writePump write error")
			c.Close()
			return
		}
	}
}
