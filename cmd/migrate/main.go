package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kabina/kabinaview/internal/adapters/postgres"
	"github.com/kabina/kabinaview/internal/adapters/sqlite"
	"github.com/kabina/kabinaview/internal/pkg/config"
	"github.com/kabina/kabinaview/internal/pkg/logging"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|snapshot [path]>")
	}

	cfg, err := config.Load("kabinaview-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	switch os.Args[1] {
	case "up":
		if cfg.Database.Driver == "sqlite" {
			// Open creates the snapshot schema.
			db, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
			if err != nil {
				log.Fatalf("db: %v", err)
			}
			db.Close()
			log.Println("snapshot schema ready")
			return
		}
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer pool.Close()
		runMigrations(ctx, pool)
	case "snapshot":
		path := cfg.Database.SQLitePath
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		takeSnapshot(ctx, cfg, path)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) {
	files := []string{
		"migrations/001_dispatcher_tables.sql",
		"migrations/002_viewer_indexes.sql",
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		_, err = pool.Exec(ctx, string(data))
		if err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Println("all migrations applied")
}

// takeSnapshot copies the live dispatcher tables into a sqlite file that
// the viewer can later serve with database.driver=sqlite.
func takeSnapshot(ctx context.Context, cfg *config.Config, path string) {
	pg, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pg.Close()

	snap, err := postgres.NewViewerRepo(pg).ReadSnapshot(ctx)
	if err != nil {
		log.Fatalf("read snapshot: %v", err)
	}

	out, err := sqlite.Open(ctx, path)
	if err != nil {
		log.Fatalf("sqlite: %v", err)
	}
	defer out.Close()

	if err := out.WriteSnapshot(ctx, snap); err != nil {
		log.Fatalf("write snapshot: %v", err)
	}
	fmt.Printf("OK  %s: %d stops, %d cabs, %d legs, %d orders\n",
		path, len(snap.Stops), len(snap.Cabs), len(snap.Legs), len(snap.Orders))
}
