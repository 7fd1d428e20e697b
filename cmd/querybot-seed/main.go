package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/querybot/querybot/internal/config"
	"github.com/querybot/querybot/internal/database"
	"github.com/querybot/querybot/internal/seed"
)

func main() {
	direction := flag.String("direction", "up", "seed direction: up|down")
	steps := flag.Int("steps", 0, "number of seed steps; 0 means all for up, 1 for down")
	flag.Parse()

	cfg, err := config.LoadFromEnv("querybot-seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	target, opts := database.FromConfig(cfg.Database)
	target.ReadOnly = false
	db, err := database.Open(ctx, target, opts.Pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	dialect, err := database.DialectFor(target.Driver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dialect error: %v\n", err)
		os.Exit(1)
	}

	runner := seed.NewRunner(dialect)
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d seed script(s) to %s\n", applied, target.String())
	case "down":
		reverted, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("reverted %d seed script(s) on %s\n", reverted, target.String())
	default:
		fmt.Fprintf(os.Stderr, "invalid direction: %s\n", *direction)
		os.Exit(1)
	}
}
