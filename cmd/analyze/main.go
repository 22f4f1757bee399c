// analyze sends one CSV straight to the analysis service and prints the
// summary. No database, no job row; a debugging aid for the remote contract.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/adaeze-umeh/traffic-analyzer/internal/analysis"
	"github.com/adaeze-umeh/traffic-analyzer/internal/common"
	"github.com/adaeze-umeh/traffic-analyzer/internal/upload"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "analyze <capture.csv>")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg := common.LoadConfig()

	client, err := analysis.NewClient(analysis.Config{
		BaseURL: cfg.Analysis.BaseURL,
		Mode:    cfg.Analysis.Mode,
		Timeout: cfg.Analysis.Timeout,
	}, logger)
	if err != nil {
		logger.Error("building analysis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Analysis.Timeout)
	defer cancel()

	// The client reads from the transient store, so route the file through a
	// throwaway one.
	store, err := upload.NewStore(os.TempDir(), logger)
	if err != nil {
		logger.Error("temp store", "error", err)
		os.Exit(1)
	}
	f, err := os.Open(path)
	if err != nil {
		logger.Error("open capture", "error", err)
		os.Exit(1)
	}
	handle, err := store.Save(filepath.Base(path), f)
	f.Close()
	if err != nil {
		logger.Error("stage capture", "error", err)
		os.Exit(1)
	}
	defer store.Remove(handle)

	res, err := client.Analyze(ctx, handle)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(1)
	}

	fmt.Println(string(res.Summary))
}
