// Command audit scans the catalog for near-duplicate products and exports
// the pairs for manual review.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/navid-fn/pelletradar/configs"
	"github.com/navid-fn/pelletradar/internal/app"
	"github.com/navid-fn/pelletradar/internal/audit"
	"github.com/navid-fn/pelletradar/internal/models"
)

const pageSize = 500

func main() {
	cfg := configs.AppLoad()
	logger := configs.NewLogger(cfg.LogLevel)

	brand := flag.String("brand", "", "Only audit products of this brand")
	threshold := flag.Float64("threshold", audit.DefaultThreshold, "Minimum similarity of a reported pair")
	xlsxPath := flag.String("xlsx", "", "Write the report to this Excel file")
	sqlitePath := flag.String("sqlite", "", "Write the report to this SQLite database")
	flag.Parse()

	if *xlsxPath == "" && *sqlitePath == "" {
		*xlsxPath = "duplicates_" + time.Now().Format("20060102") + ".xlsx"
	}

	a, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var products []models.Product
	for offset := 0; ; offset += pageSize {
		page, err := a.Catalog.ListProducts(ctx, *brand, pageSize, offset)
		if err != nil {
			logger.Error("Failed to load products", "offset", offset, "error", err)
			os.Exit(1)
		}
		products = append(products, page...)
		if len(page) < pageSize {
			break
		}
	}

	pairs := audit.FindNearDuplicates(products, *threshold)
	logger.Info("Audit finished", "products", len(products), "pairs", len(pairs))

	if *xlsxPath != "" {
		if err := audit.WriteXLSX(*xlsxPath, pairs); err != nil {
			logger.Error("Failed to write Excel report", "path", *xlsxPath, "error", err)
			os.Exit(1)
		}
		logger.Info("Excel report written", "path", *xlsxPath)
	}
	if *sqlitePath != "" {
		if err := audit.WriteSQLite(*sqlitePath, pairs); err != nil {
			logger.Error("Failed to write SQLite report", "path", *sqlitePath, "error", err)
			os.Exit(1)
		}
		logger.Info("SQLite report written", "path", *sqlitePath)
	}
}
