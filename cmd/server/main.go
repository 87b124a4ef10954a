package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/VoiceRelay/internal/adapters/http"
	"github.com/dkeye/VoiceRelay/internal/adapters/tcp"
	"github.com/dkeye/VoiceRelay/internal/adapters/ws"
	"github.com/dkeye/VoiceRelay/internal/app"
	"github.com/dkeye/VoiceRelay/internal/app/orch"
	"github.com/dkeye/VoiceRelay/internal/config"
	"github.com/dkeye/VoiceRelay/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	policy, err := app.PolicyByName(cfg.Backpressure)
	if err != nil {
		return err
	}

	rooms := app.NewDirectory(core.RoomOptions{SelfDelivery: cfg.SelfDelivery})
	reg := app.NewRegistry()
	disp := orch.NewDispatcher(rooms, reg)
	disp.Policy = policy
	disp.ForwardFramed = cfg.ForwardFramed
	disp.Joins = app.NewJoinLimiter(cfg.JoinLimit, cfg.JoinInterval)

	tcpSrv, err := tcp.Listen(cfg.TCPAddr, tcp.Options{
		ReadBuffer:   cfg.ReadBuffer,
		SendQueue:    cfg.SendQueue,
		WriteTimeout: cfg.WriteTimeout,
		MaxPayload:   cfg.MaxPayload,
	}, disp)
	if err != nil {
		return err
	}

	wsh := ws.NewHandler(ctx, disp, ws.Options{
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		WriteTimeout: cfg.WriteTimeout,
		SendQueue:    cfg.SendQueue,
		MaxPayload:   cfg.MaxPayload,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: router.SetupRouter(cfg, disp, wsh.Handle),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tcpSrv.Serve(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("HTTP server started")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		tcpSrv.Close()
		closed := reg.CloseAll()
		log.Info().Int("sessions", closed).Msg("closed live sessions")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})
	return g.Wait()
}
