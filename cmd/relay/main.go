package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"skyhopper/internal/persistence/scores"
	"skyhopper/internal/relay"
	"skyhopper/internal/sim/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (empty: built-in defaults)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable high-score persistence")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[relay] ", log.LstdFlags|log.Lmicroseconds)

	tune := tuning.Default()
	if tp := strings.TrimSpace(*tuningPath); tp != "" {
		loaded, err := tuning.Load(tp)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = loaded
	}

	var scoreStore *scores.Store
	if !*disableDB {
		var err error
		scoreStore, err = scores.Open(filepath.Join(*dataDir, "scores.db"))
		if err != nil {
			logger.Fatalf("open score db: %v", err)
		}
		defer scoreStore.Close()
	}

	srv := relay.NewServer(&tune, scoreStore, logger)

	ctx, cancel := signalContext()
	defer cancel()
	go srv.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(rw, "# HELP skyhopper_relay_rooms Live room count.\n")
		fmt.Fprintf(rw, "# TYPE skyhopper_relay_rooms gauge\n")
		fmt.Fprintf(rw, "skyhopper_relay_rooms %d\n", srv.RoomCount())
	})
	mux.HandleFunc("/v1/status", srv.StatusHandler())
	mux.HandleFunc("/v1/ws", srv.Handler())

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = httpSrv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (tps=%d snapshot=%dHz)", *addr, tune.TPS, tune.Net.SnapshotRateHz)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
