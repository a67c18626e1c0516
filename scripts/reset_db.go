// reset_db empties store A for local testing. Store B is left alone; clear it
// through the admin API or by emptying the bucket prefix.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"mandoub-backend/internal/config"
	"mandoub-backend/internal/db"
	"mandoub-backend/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.Log.Level, true)

	fmt.Println("Reset store A for testing")
	fmt.Printf("This deletes every document and outbox entry in %s@%s.\n", cfg.Database.Name, cfg.Database.Host)
	fmt.Print("Type 'yes' to confirm: ")

	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" {
		fmt.Println("Reset cancelled.")
		os.Exit(0)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to store A")
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"documents", "outbox"} {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+table); err != nil {
			log.Fatal().Err(err).Str("table", table).Msg("failed to truncate")
		}
		fmt.Printf("  cleared %s\n", table)
	}

	if _, err := tx.Exec(ctx, "ALTER SEQUENCE outbox_id_seq RESTART WITH 1"); err != nil {
		log.Warn().Err(err).Msg("failed to reset outbox sequence")
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to commit reset")
	}
	fmt.Println("Store A reset. The admin password falls back to ADMIN_PASSWORD until changed.")
}
