// Package main manages tracked addresses from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/logging"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/storage"
	"github.com/crypto-tracker/internal/types"
)

func main() {
	var (
		action     = flag.String("action", "list", "Action: add, list, remove")
		address    = flag.String("address", "", "Public address (for add/remove)")
		userID     = flag.String("user", "default", "Owning user id")
		name       = flag.String("name", "", "Display name (for add)")
		walletType = flag.String("type", string(types.WalletHot), "Wallet type: HOT, COLD, SMART")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Init(cfg.Logging.Level, "console"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgres.Close()

	repo := storage.NewAddressRepository(postgres)
	ctx := context.Background()

	switch *action {
	case "add":
		if *address == "" {
			log.Fatal("add requires -address")
		}
		addr := &models.TrackedAddress{
			UserID:        *userID,
			PublicAddress: *address,
			Name:          *name,
			WalletType:    types.WalletType(*walletType),
		}
		if err := repo.Create(ctx, addr); err != nil {
			log.Fatalf("Failed to add address: %v", err)
		}
		fmt.Printf("Added %s (id %d)\n", addr.PublicAddress, addr.ID)

	case "list":
		addresses, err := repo.ListByUser(ctx, *userID)
		if err != nil {
			log.Fatalf("Failed to list addresses: %v", err)
		}
		for _, addr := range addresses {
			fmt.Printf("%d\t%s\t%s\t%s\n", addr.ID, addr.PublicAddress, addr.WalletType, addr.Name)
		}

	case "remove":
		if *address == "" {
			log.Fatal("remove requires -address")
		}
		if err := repo.Delete(ctx, *address); err != nil {
			log.Fatalf("Failed to remove address: %v", err)
		}
		fmt.Printf("Removed %s\n", *address)

	default:
		fmt.Fprintf(os.Stderr, "unknown action: %s\n", *action)
		os.Exit(1)
	}
}
