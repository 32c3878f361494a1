package main

import (
	"database/sql"
	"flag"
	"os"

	_ "github.com/ClickHouse/clickhouse-go/v2" // ClickHouse driver
	_ "github.com/go-sql-driver/mysql"

	"github.com/navid-fn/pelletradar/configs"
	"github.com/navid-fn/pelletradar/internal/migrations"
)

func main() {
	cfg := configs.AppLoad()
	logger := configs.NewLogger(cfg.LogLevel)

	target := flag.String("target", "", "Migrate only this database: mysql or clickhouse")
	flag.Parse()

	targets := []string{migrations.DialectMySQL}
	if cfg.LedgerBackend == configs.LedgerBackendClickHouse {
		targets = append(targets, migrations.DialectClickHouse)
	}
	if *target != "" {
		targets = []string{*target}
	}

	for _, dialect := range targets {
		dsn := cfg.DBDSN
		if dialect == migrations.DialectClickHouse {
			dsn = cfg.ClickHouseDSN
		}

		db, err := sql.Open(dialect, dsn)
		if err != nil {
			logger.Error("Failed to connect to database", "dialect", dialect, "error", err)
			os.Exit(1)
		}

		if err := db.Ping(); err != nil {
			logger.Error("Failed to ping database", "dialect", dialect, "error", err)
			db.Close()
			os.Exit(1)
		}

		logger.Info("Running database migrations...", "dialect", dialect)
		if err := migrations.Up(db, dialect); err != nil {
			logger.Error("Goose migration failed", "dialect", dialect, "error", err)
			db.Close()
			os.Exit(1)
		}
		db.Close()
	}

	logger.Info("Migrations completed successfully")
}
