package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prekeynet/prekey-node/pkg/config"
	"github.com/prekeynet/prekey-node/pkg/server"
	"github.com/prekeynet/prekey-node/pkg/storage"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file (optional)")
	endpoint   = flag.String("endpoint", "", "Endpoint to bind (overrides config)")
	adminAddr  = flag.String("admin", "", "HTTP status API address (overrides config)")
	dataDir    = flag.String("data", "", "Data directory (overrides config)")
)

func main() {
	flag.Parse()

	printBanner()

	cfg := config.DefaultServerConfig()
	if *configPath != "" {
		loaded, err := config.LoadServerConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if *adminAddr != "" {
		cfg.AdminAddr = *adminAddr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	store, err := storage.NewServerStore(cfg.ApplicationName, cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open server storage: %v", err)
	}
	defer store.Close()

	if err := store.InitServer(); err != nil {
		log.Fatalf("Failed to initialize server storage: %v", err)
	}
	log.Printf("Server storage initialized in %s", cfg.DataDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	director := server.NewDirector(store, cfg.Policy)
	srv := server.NewServer(director, cfg.Endpoint)

	var api *server.AdminAPI
	if cfg.AdminAddr != "" {
		api = server.NewAdminAPI(store, cfg.AdminAddr)
		go func() {
			log.Printf("Status API listening on %s", cfg.AdminAddr)
			if err := api.Start(); err != nil {
				log.Printf("Status API error: %v", err)
			}
		}()
	}

	// Shut down on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received %v, shutting down...", sig)
		cancel()
		if api != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			api.Shutdown(shutdownCtx)
		}
	}()

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printBanner() {
	fmt.Println("=========================================")
	fmt.Println("  PQXDH Prekey Registration Server")
	fmt.Println("=========================================")
}
