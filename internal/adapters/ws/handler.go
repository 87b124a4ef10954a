package ws

import (
	"context"
	"net/http"

	"github.com/dkeye/VoiceRelay/internal/app/orch"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler upgrades HTTP requests and serves each socket as a relay session
// bound to the server lifetime ctx.
type Handler struct {
	ctx      context.Context
	disp     *orch.Dispatcher
	opts     Options
	upgrader websocket.Upgrader
}

func NewHandler(ctx context.Context, disp *orch.Dispatcher, opts Options) *Handler {
	return &Handler{
		ctx:  ctx,
		disp: disp,
		opts: opts.withDefaults(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle runs the session on the request goroutine until the socket ends.
func (h *Handler) Handle(c *gin.Context) {
	client := c.GetString("client_token")
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade")
		return
	}
	conn := newConn(ws, h.opts)
	go conn.writePump()

	sess := orch.NewSession(conn, orch.SessionOptions{
		Transport:  "ws",
		Remote:     c.ClientIP(),
		Client:     client,
		MaxPayload: h.opts.MaxPayload,
	})
	if err := h.disp.Serve(h.ctx, sess, conn); err != nil {
		log.Debug().Err(err).Str("module", "ws").Str("client", client).Msg("connection ended with error")
	}
}
