package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dm-vev/terracotta/server"
	"github.com/dm-vev/terracotta/server/console"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	path := flag.String("config", "config.toml", "path to the .toml or .yaml configuration file")
	debug := flag.Bool("debug", false, "log debug messages")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	uc, err := server.LoadUserConfig(*path)
	if err != nil {
		log.Error("Load config.", "err", err)
		os.Exit(1)
	}
	conf, err := uc.Config(log)
	if err != nil {
		log.Error("Convert config.", "err", err)
		os.Exit(1)
	}
	if uc.Metrics.Enabled {
		go serveMetrics(log, uc.Metrics.Address)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := conf.New()
	go console.New(srv, log).Run(ctx)
	if err := srv.Run(ctx); err != nil {
		log.Error("Server stopped.", "err", err)
		os.Exit(1)
	}
}

// serveMetrics serves the Prometheus metrics of the process on addr.
func serveMetrics(log *slog.Logger, addr string) {
	log.Info("Serving metrics.", "addr", addr)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Metrics server stopped.", "err", err)
	}
}
