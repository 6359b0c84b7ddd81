// Command adminctl provisions admins and manages the schema out of band.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/kelseyhightower/envconfig"

	"github.com/daap14/adminportal/internal/auth"
	"github.com/daap14/adminportal/internal/migrate"
	"github.com/daap14/adminportal/internal/password"
)

type settings struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
	BcryptCost  int    `envconfig:"BCRYPT_COST" default:"12"`
}

func main() {
	if err := realMain(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "adminctl:", err)
		os.Exit(1)
	}
}

func realMain(args []string) error {
	var cfg settings
	if err := envconfig.Process("", &cfg); err != nil {
		return err
	}

	a := &app{
		hasher: password.NewHasher(cfg.BcryptCost),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		getenv: os.Getenv,
	}

	ctx := context.Background()
	if needsDatabase(args) {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for %q", args[0])
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()

		db := stdlib.OpenDBFromPool(pool)
		defer db.Close() //nolint:errcheck

		a.admins = auth.NewAdminRepository(pool)
		a.migrator = migrate.NewManager(db)
	}

	return a.run(ctx, args)
}
