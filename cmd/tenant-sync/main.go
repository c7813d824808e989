// tenant-sync pushes file-based tenant configs into the postgres tenant
// config store. Deployments that author configs as JSON files but serve
// them from postgres run this after editing.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fleetdesk/fleetdesk/internal/config"
	"github.com/fleetdesk/fleetdesk/internal/store/postgres"
	"github.com/fleetdesk/fleetdesk/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	dir := cfg.Tenants.Dir
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	ctx := context.Background()

	fileStore, err := tenant.NewFileStore(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open tenant config dir: %v\n", err)
		os.Exit(1)
	}

	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := postgres.NewTenantConfigRepository(db)

	ids, err := fileStore.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list tenant configs: %v\n", err)
		os.Exit(1)
	}

	var failed int
	for _, id := range ids {
		tcfg, err := fileStore.Get(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: read failed: %v\n", id, err)
			failed++
			continue
		}
		if err := tcfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "  %s: invalid config: %v\n", id, err)
			failed++
			continue
		}
		if err := repo.Upsert(ctx, tcfg); err != nil {
			fmt.Fprintf(os.Stderr, "  %s: upsert failed: %v\n", id, err)
			failed++
			continue
		}
		fmt.Printf("  %s: synced\n", id)
	}

	fmt.Printf("Synced %d of %d tenant configs.\n", len(ids)-failed, len(ids))
	if failed > 0 {
		os.Exit(1)
	}
}
