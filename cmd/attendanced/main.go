package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"qr-attendance-backend/config"
	"qr-attendance-backend/internal/api"
	"qr-attendance-backend/internal/attendance"
	"qr-attendance-backend/internal/db"
	"qr-attendance-backend/internal/feed"
	"qr-attendance-backend/internal/mw"
	"qr-attendance-backend/internal/notification"
	"qr-attendance-backend/internal/roster"
	"qr-attendance-backend/internal/scan"
	"qr-attendance-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "attendanced ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	loc, err := time.LoadLocation(cfg.Scanner.Timezone)
	if err != nil {
		logger.Fatalf("invalid scanner timezone %q: %v", cfg.Scanner.Timezone, err)
	}

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys not configured, push notifications disabled")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := feed.NewBroker(cfg.Scanner.InboxSize)
	appStore := store.NewGormStore(gormDB, broker)
	logger.Println("data store initialized")

	rosterSvc := roster.NewService(&cfg.Roster, appStore)
	go rosterSvc.Run(ctx)

	views := mw.NewViewCache(cfg.Server.CacheTTL)
	resolver := attendance.NewResolver(appStore,
		attendance.WithPolicy(attendance.DoubleTimeInPolicy(cfg.Scanner.DoubleTimeIn)),
		attendance.WithInvalidator(views),
	)
	logger.Printf("double time-in policy: %s", resolver.Policy())
	stations := scan.NewRegistry(ctx, resolver, rosterSvc, cfg.Scanner.Cooldown, cfg.Scanner.InboxSize)

	if webpushOptions != nil {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, rosterSvc, webpushOptions)
		pool.Start(ctx)
		go pool.Follow(ctx, broker)
	}

	router := api.NewRouter(&cfg.Server, api.Deps{
		Store:    appStore,
		Resolver: resolver,
		Stations: stations,
		Views:    views,
		Broker:   broker,
		Webpush:  webpushOptions,
		Location: loc,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
