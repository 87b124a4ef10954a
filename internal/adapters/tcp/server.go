// Package tcp serves the binary relay protocol over raw TCP.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/VoiceRelay/internal/app/orch"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

type Options struct {
	ReadBuffer   int
	SendQueue    int
	WriteTimeout time.Duration
	MaxPayload   uint32
}

func (o Options) withDefaults() Options {
	if o.ReadBuffer <= 0 {
		o.ReadBuffer = 4096
	}
	return o
}

type Server struct {
	ln   net.Listener
	opts Options
	disp *orch.Dispatcher

	wg      conc.WaitGroup
	closing atomic.Bool

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// Listen binds addr. Connections are accepted once Serve is called.
func Listen(addr string, opts Options, disp *orch.Dispatcher) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", addr, err)
	}
	return &Server{
		ln:    ln,
		opts:  opts.withDefaults(),
		disp:  disp,
		conns: make(map[*Conn]struct{}),
	}, nil
}

func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve accepts connections until ctx is done or Close is called, then waits
// for every connection to finish.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.Close)
	defer stop()
	log.Info().Str("module", "tcp").Str("addr", s.ln.Addr().String()).Msg("listening")

	for {
		c, err := s.ln.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				log.Info().Str("module", "tcp").Msg("listener stopped")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.wg.Go(func() { s.handle(ctx, c) })
	}
}

func (s *Server) handle(ctx context.Context, c net.Conn) {
	if err := optimizeConn(c); err != nil {
		log.Warn().Err(err).Str("module", "tcp").Msg("set socket options")
	}
	conn := newConn(c, s.opts)
	if !s.track(conn) {
		conn.Close()
		return
	}
	defer s.untrack(conn)

	s.wg.Go(conn.writePump)

	sess := orch.NewSession(conn, orch.SessionOptions{
		Transport:  "tcp",
		Remote:     c.RemoteAddr().String(),
		MaxPayload: s.opts.MaxPayload,
	})
	if err := s.disp.Serve(ctx, sess, conn); err != nil {
		log.Debug().Err(err).Str("module", "tcp").Str("remote", c.RemoteAddr().String()).Msg("connection ended with error")
	}
}

func (s *Server) track(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// Close stops the listener and every live connection.
func (s *Server) Close() {
	if !s.closing.CompareAndSwap(false, true) {
		return
	}
	_ = s.ln.Close()
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
