// Package http exposes the admin API and the WebSocket relay endpoint.
package http

import (
	"net/http"

	"github.com/dkeye/VoiceRelay/internal/app/orch"
	"github.com/dkeye/VoiceRelay/internal/config"
	"github.com/dkeye/VoiceRelay/internal/core"
	"github.com/dkeye/VoiceRelay/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "client_token"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware pins a stable token to the browser session and
// exposes it as "client_token" on the gin context.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			sess.Set(clientTokenKey, token)
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

type roomView struct {
	core.RoomInfo
	Members []domain.UserID `json:"members"`
}

// SetupRouter wires the admin routes. wsHandler serves /api/ws.
func SetupRouter(cfg *config.Config, disp *orch.Dispatcher, wsHandler gin.HandlerFunc) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	secret := cfg.Secret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn().Str("module", "adapters.http").Msg("no secret configured, client tokens will not survive a restart")
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions("VoiceRelaySessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": disp.Rooms.List()})
	})

	api.GET("/rooms/:id", func(c *gin.Context) {
		id, ok := roomParam(c)
		if !ok {
			return
		}
		room, found := disp.Rooms.Get(id)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, roomView{
			RoomInfo: core.RoomInfo{ID: id, Name: room.Room().Name, MemberCount: room.MemberCount()},
			Members:  room.Members(),
		})
	})

	// DELETE /api/rooms/:id drops every member's connection and the room
	api.DELETE("/rooms/:id", func(c *gin.Context) {
		id, ok := roomParam(c)
		if !ok {
			return
		}
		if _, found := disp.Rooms.Get(id); !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		n := disp.EvictRoom(id)
		log.Info().Str("module", "adapters.http").Stringer("room", id).Int("evicted", n).Msg("room evicted")
		c.Status(http.StatusNoContent)
	})

	api.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": disp.Registry.Snapshot()})
	})

	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, disp.Stats.Snapshot())
	})

	api.GET("/ws", wsHandler)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}

func roomParam(c *gin.Context) (domain.RoomID, bool) {
	id, err := domain.ParseRoomID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, false
	}
	return id, true
}
