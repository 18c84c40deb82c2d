package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/dimitrije/teamforge/internal/config"
	"github.com/dimitrije/teamforge/internal/database"
	"github.com/dimitrije/teamforge/internal/store"
)

func main() {
	quiet := flag.Duration("quiet", time.Minute, "skip categories changed more recently than this")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	s := store.New(db)

	corrections, err := s.ReconcileCategoryCounts(ctx, *quiet)
	if err != nil {
		log.Fatalf("Failed to reconcile categories: %v", err)
	}

	for _, c := range corrections {
		fmt.Printf("category %s: team_count %d -> %d\n", c.CategoryID, c.Previous, c.Actual)
	}

	teams, err := s.CountTeams(ctx)
	if err != nil {
		log.Fatalf("Failed to count teams: %v", err)
	}

	fmt.Printf("Reconciled %d categories, %d teams in total\n", len(corrections), teams)
}
