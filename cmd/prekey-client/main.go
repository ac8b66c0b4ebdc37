package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/prekeynet/prekey-node/pkg/client"
	"github.com/prekeynet/prekey-node/pkg/config"
	"github.com/prekeynet/prekey-node/pkg/crypto/curve"
	"github.com/prekeynet/prekey-node/pkg/crypto/pqkem"
	"github.com/prekeynet/prekey-node/pkg/storage"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file (optional)")
	endpoint   = flag.String("endpoint", "", "Server endpoint (overrides config)")
	dataDir    = flag.String("data", "", "Data directory (overrides config)")
	peer       = flag.String("peer", "", "Request a peer's prekey bundle by UUID, then exit")
)

func main() {
	flag.Parse()

	cfg := config.DefaultClientConfig()
	if *configPath != "" {
		loaded, err := config.LoadClientConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	store, err := storage.NewClientStore(cfg.ApplicationName, cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open client storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := client.Start(ctx, store, curve.Curve25519{}, pqkem.Kyber512{}, cfg)
	if err != nil {
		log.Fatalf("Failed to start client: %v", err)
	}
	defer c.Close()

	log.Printf("Client running as %s", c.ClientID())

	if *peer != "" {
		peerID, err := uuid.Parse(*peer)
		if err != nil {
			log.Fatalf("Invalid peer UUID: %v", err)
		}
		bundle, err := c.RequestPeerBundle(peerID)
		if err != nil {
			log.Fatalf("Failed to fetch peer bundle: %v", err)
		}
		fmt.Printf("Peer %s\n", peerID)
		fmt.Printf("  identity key:        %x\n", bundle.IdentityKey.Bytes)
		fmt.Printf("  signed curve prekey: %s\n", bundle.SignedCurvePrekey.IdentifiedPublicKey.ID)
		fmt.Printf("  pqkem prekey:        %s\n", bundle.OneTimePQKEMPrekey.IdentifiedPublicKey.ID)
		if bundle.OneTimeCurvePrekey != nil {
			fmt.Printf("  one-time curve key:  %s\n", bundle.OneTimeCurvePrekey.ID)
		} else {
			fmt.Printf("  one-time curve key:  none\n")
		}
		return
	}

	// Run until interrupted; the heartbeat keeps the bundle healthy.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received %v, shutting down...", sig)
}
