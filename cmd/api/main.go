package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hamdamapp/backend/internal/config"
	"github.com/hamdamapp/backend/internal/handler"
	chatHandler "github.com/hamdamapp/backend/internal/handler/chat"
	partnerHandler "github.com/hamdamapp/backend/internal/handler/partner"
	"github.com/hamdamapp/backend/internal/handler/stream"
	"github.com/hamdamapp/backend/internal/model/profile"
	"github.com/hamdamapp/backend/internal/notify"
	"github.com/hamdamapp/backend/internal/service/ai"
	chatService "github.com/hamdamapp/backend/internal/service/chat"
	partnerService "github.com/hamdamapp/backend/internal/service/partner"
	"github.com/hamdamapp/backend/internal/store/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer store.Close()

	if !cfg.AI.Enabled() {
		log.Println("warning: AI credentials not configured - assistant requests will fail until AI_API_KEY is set")
	}
	aiClient := ai.NewClient(cfg.AI)

	profiles := profile.NewMemoryStore(profile.Seed())
	controller := chatService.NewController(aiClient, store, profiles)

	bus := partnerService.NewBus(store, store)

	window, err := notify.ParseSuppressionWindow(cfg.Notify.QuietStart, cfg.Notify.QuietEnd)
	if err != nil {
		log.Fatalf("invalid quiet hours configuration: %v", err)
	}
	if window.Enabled {
		log.Printf("quiet hours active %s-%s (low/medium urgency suppressed)", cfg.Notify.QuietStart, cfg.Notify.QuietEnd)
	}

	router := handler.NewRouter(
		chatHandler.New(controller, store),
		stream.New(controller),
		partnerHandler.New(bus, partnerHandler.NewWebSocketHandler(bus, window)),
	)

	addr, err := cfg.Server.Addr()
	if err != nil {
		log.Fatalf("invalid server configuration: %v", err)
	}
	startServer(ctx, addr, router)
}

func startServer(ctx context.Context, addr string, router http.Handler) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Hamdam backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
