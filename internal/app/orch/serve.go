package orch

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/dkeye/VoiceRelay/internal/core"
	"github.com/rs/zerolog/log"
)

// Serve drives one connection until the peer closes, ctx is done or the
// stream turns fatal. Whatever the cause, the session is unregistered, its
// room membership released and its transport closed before Serve returns.
// A clean close returns nil.
func (d *Dispatcher) Serve(ctx context.Context, s *Session, src core.ChunkSource) error {
	logger := log.With().Str("module", "orch").Str("sid", string(s.ID())).Str("transport", s.opts.Transport).Str("remote", s.opts.Remote).Logger()

	d.Registry.Bind(s)
	d.Stats.ConnectionOpened()
	stop := context.AfterFunc(ctx, s.Close)
	defer func() {
		stop()
		d.Disconnect(s)
		d.Joins.Forget(s.ID())
		s.Close()
		d.Registry.Unbind(s.ID())
		d.Stats.ConnectionClosed()
		logger.Info().Msg("session closed")
	}()
	logger.Info().Msg("session opened")

	for {
		chunk, err := src.ReadChunk()
		if len(chunk) > 0 {
			if ferr := d.Feed(s, chunk); ferr != nil {
				logger.Error().Err(ferr).Msg("protocol error, dropping connection")
				return ferr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			logger.Warn().Err(err).Msg("read failed")
			return err
		}
	}
}
