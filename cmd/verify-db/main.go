// verify-db runs the integrity checks against the configured database and
// exits non-zero when any check finds rows.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"demand-ledger/internal/config"
	"demand-ledger/internal/db"
	"demand-ledger/internal/store/postgres"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	if cfg.UseMemoryStore() {
		logrus.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("[CONNECT] %v", err)
	}
	store := postgres.New(pool)
	defer store.Close()

	issues, err := store.CheckIntegrity(ctx)
	if err != nil {
		logrus.Fatalf("[CHECK] %v", err)
	}
	if len(issues) == 0 {
		fmt.Println("[OK] no integrity issues found")
		return
	}
	for _, is := range issues {
		fmt.Printf("[FAIL] %s: %d rows\n", is.Check, is.Rows)
	}
	store.Close()
	os.Exit(1)
}
