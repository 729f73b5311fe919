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

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/capture"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/compositor"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/config"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/encoder"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/input/robot"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/logging"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/peer"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/session"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/stream"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/transport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, config.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.ParseHostFlags(args)
	if err != nil {
		return err
	}
	log := logging.ConfigureRuntime()

	log.Info().
		Str("addr", cfg.Addr).
		Int("display", cfg.Display).
		Int("fps", cfg.FPS).
		Int("quality", cfg.Quality).
		Int("max_width", cfg.MaxWidth).
		Bool("webrtc", cfg.WebRTC).
		Msg("remotepc host starting")

	src, err := capture.NewScreenSource(cfg.Display)
	if err != nil {
		return fmt.Errorf("capture init: %w", err)
	}

	sessions := session.NewHost(session.Config{
		Stream: stream.Config{
			Interval:     cfg.Interval(),
			MinFrameTime: cfg.MinFrameTime,
			MaxQuality:   cfg.Quality,
			MinQuality:   cfg.MinQuality,
			Adaptive:     cfg.AdaptiveQuality,
		},
	}, session.Deps{
		Source:     src,
		Injector:   robot.New(log),
		Compositor: compositor.New(cfg.MaxWidth, nil),
		NewEncoder: func() encoder.Encoder { return encoder.NewJPEGEncoder(cfg.Quality) },
	}, log)
	defer sessions.Close()

	var framePath *peer.Host
	if cfg.WebRTC {
		framePath = peer.NewHost(peer.DefaultOptions(), log, func(c *transport.DataChannelConn) {
			sessions.Attach(c)
		})
	}

	srv := transport.NewServer(transport.DefaultOptions(), log, func(c *transport.WSConn) {
		sessions.Attach(c)
		if framePath != nil {
			framePath.Serve(c)
		}
	})
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("path", transport.Path).Msg("host ready")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown; closing
	// the sessions ends them.
	sessions.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
