package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mossvale/internal/auth"
	plog "mossvale/internal/persistence/log"
	"mossvale/internal/persistence/repo"
	"mossvale/internal/sim/session"
	"mossvale/internal/sim/tuning"
	"mossvale/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		dbPath     = flag.String("db", "", "sqlite path (default: <data>/world.db)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		authSecret = flag.String("auth_secret", "", "credential digest secret (or set MOSSVALE_AUTH_SECRET)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "world.db")
	}
	store, err := repo.Open(path)
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer store.Close()

	secret := strings.TrimSpace(*authSecret)
	if secret == "" {
		secret = strings.TrimSpace(os.Getenv("MOSSVALE_AUTH_SECRET"))
	}
	if secret == "" {
		logger.Fatalf("auth secret required (-auth_secret or MOSSVALE_AUTH_SECRET)")
	}
	identity, err := auth.NewLocalProvider(store.Handle(), []byte(secret))
	if err != nil {
		logger.Fatalf("init identity provider: %v", err)
	}

	events := plog.NewEventLogger(*dataDir)
	defer events.Close()

	reg := session.NewRegistry(session.Deps{
		Repo:     store,
		Identity: identity,
		Events:   events,
		Tune:     tune,
		Log:      log.New(os.Stdout, "[session] ", log.LstdFlags|log.Lmicroseconds),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reg.Run(ctx, tune.TickInterval())

	wsSrv := ws.NewServer(reg, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s (tick %v, %d sessions)", *addr, tune.TickInterval(), reg.Len())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Printf("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
