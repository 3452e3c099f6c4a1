package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"dotarena/game"
	"dotarena/server"
)

// DotArena 入口：启动 HTTP + WebSocket 服务与世界的 Tick 循环
func main() {
	cfg := game.DefaultConfig()
	var (
		addr     string
		logPath  string
		logLevel string
	)
	flag.StringVar(&addr, "addr", ":8080", "server listen address, e.g. :8080")
	flag.StringVar(&logPath, "log", "dotarena.log", "log file path (rotated)")
	flag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "tick interval")
	flag.DurationVar(&cfg.DrainBudget, "drain-budget", cfg.DrainBudget, "soft time budget for applying queued commands per tick")
	flag.Float64Var(&cfg.Size, "size", cfg.Size, "map width and height")
	flag.IntVar(&cfg.NeutralCount, "neutral", cfg.NeutralCount, "neutral emitters placed at start")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flag.BoolVar(&cfg.Strict, "strict", cfg.Strict, "panic on invariant violations and verify the index every tick")
	flag.Parse()

	if err := server.InitLogger(logPath, logLevel); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	room, err := server.NewRoom(cfg, server.Log)
	if err != nil {
		server.Log.Fatalw("invalid config", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticking := make(chan struct{})
	go func() {
		room.Run(ctx)
		close(ticking)
	}()

	mux := http.NewServeMux()
	room.Routes(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		server.Log.Infof("DotArena listening on %s (seed %d, map %.0f)", addr, cfg.Seed, cfg.Size)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	<-ctx.Done()
	server.Log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		server.Log.Warnw("http shutdown", "err", err)
	}
	room.Close()
	<-ticking
}
