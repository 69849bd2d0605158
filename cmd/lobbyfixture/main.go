// Command lobbyfixture serves an in-memory BringTen lobby so the quick-game
// walk-through can run without the real front end and game server.
//
// Usage:
//
//	go run ./cmd/lobbyfixture [-addr :5173]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/bringten-smoke/internal/config"
	"github.com/kuitang/bringten-smoke/internal/lobby"
	"github.com/kuitang/bringten-smoke/internal/obs"
)

func main() {
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before reading the environment")
	addr := flag.String("addr", "", "Listen address (overrides LISTEN_ADDR, default :5173)")
	flag.Parse()

	cfg, err := config.LoadFixtureConfig(*envFile, *addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	obs.Init()
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))
	log := obs.Pkg("main")

	srv, err := lobby.NewServer(lobby.NewRegistry())
	if err != nil {
		log.Error("lobby_init_failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("lobby_listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server_error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	log.Info("lobby_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown_failed", "error", err)
	}
}
