// migrate applies or rolls back the embedded schema migrations.
//
// Usage:
//
//	go run ./cmd/migrate up
//	go run ./cmd/migrate down --steps 1
//	go run ./cmd/migrate version
package main

import (
	"fmt"
	"os"

	"demand-ledger/internal/config"
	"demand-ledger/internal/db"
	"demand-ledger/internal/logging"

	"github.com/urfave/cli/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.UseMemoryStore() {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; nothing to migrate")
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, "text", os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	withMigrator := func(fn func(*db.Migrator) error) error {
		m, err := db.NewMigrator(cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer m.Close()
		return fn(m)
	}

	app := &cli.App{
		Name:  "migrate",
		Usage: "manage the database schema",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply every pending migration",
				Action: func(c *cli.Context) error {
					return withMigrator(func(m *db.Migrator) error {
						if err := m.Up(); err != nil {
							return err
						}
						logger.Info("[DONE] schema is up to date")
						return nil
					})
				},
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{&cli.IntFlag{Name: "steps", Value: 1}},
				Action: func(c *cli.Context) error {
					return withMigrator(func(m *db.Migrator) error {
						return m.Down(c.Int("steps"))
					})
				},
			},
			{
				Name:  "version",
				Usage: "print the applied schema version",
				Action: func(c *cli.Context) error {
					return withMigrator(func(m *db.Migrator) error {
						v, dirty, err := m.Version()
						if err != nil {
							return err
						}
						fmt.Printf("version %d", v)
						if dirty {
							fmt.Print(" (dirty)")
						}
						fmt.Println()
						return nil
					})
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.WithError(err).Fatal("migrate failed")
	}
}
