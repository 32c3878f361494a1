// Command resolve runs a file of scraped listings through the resolution
// pipeline and prints one result per listing. Useful for checking how new
// scraper output will be matched before it reaches Kafka.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/navid-fn/pelletradar/configs"
	"github.com/navid-fn/pelletradar/internal/app"
	"github.com/navid-fn/pelletradar/internal/models"
)

func main() {
	file := flag.String("file", "", "Path to a JSON object or array of listings (default: stdin)")
	inMemory := flag.Bool("memory", true, "Resolve against an empty in-memory catalog")
	summaryOnly := flag.Bool("summary", false, "Print only the batch summary counts")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: resolve [-file listings.json] [-memory=false] [-summary]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := configs.AppLoad()
	logger := configs.NewLogger(cfg.LogLevel)

	data, err := readInput(*file)
	if err != nil {
		logger.Error("Failed to read listings", "error", err)
		os.Exit(1)
	}
	listings, err := models.DecodeListings(data)
	if err != nil {
		logger.Error("Failed to decode listings", "error", err)
		os.Exit(1)
	}

	a, err := app.New(cfg, logger, app.Options{InMemory: *inMemory})
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := a.Pipeline.ProcessBatch(ctx, listings)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if *summaryOnly {
		summary.Results = nil
	}
	if err := enc.Encode(summary); err != nil {
		logger.Error("Failed to write results", "error", err)
		os.Exit(1)
	}

	if summary.Failed > 0 {
		os.Exit(2)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
