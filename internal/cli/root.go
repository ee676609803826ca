// Package cli implements the hrfetch CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tkummer/hrfetch/internal/cache"
	"github.com/tkummer/hrfetch/internal/config"
	"github.com/tkummer/hrfetch/internal/session"
)

var (
	debugFlag  bool
	forceFlag  bool
	outputPath string
	cachePath  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "hrfetch",
	Short: "Scrape and reconcile German company-registry records",
	Long:  "Searches the Handelsregister for company names, downloads the structured document export, and reconciles both sources into a two-sheet workbook.",
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "Enable debug logging")
	RootCmd.PersistentFlags().BoolVarP(&forceFlag, "force", "f", false, "Force a fresh pull and skip the cache")
	RootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "handelsregister_result.xlsx", "Path to the output workbook")
	RootCmd.PersistentFlags().StringVar(&cachePath, "cache", "", "Cache database path (default: $HRFETCH_CACHE_PATH or ~/.hrfetch/cache.db)")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debugFlag {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitErr("load config", err)
	}
	return cfg
}

func getCachePath(cfg *config.Config) string {
	if cachePath != "" {
		return cachePath
	}
	if cfg.CachePath != "" {
		return cfg.CachePath
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".hrfetch", "cache.db")
}

func openCache(cfg *config.Config) *cache.Cache {
	c, err := cache.New(getCachePath(cfg))
	if err != nil {
		exitErr("open cache", err)
	}
	return c
}

func cacheMode() session.CacheMode {
	if forceFlag {
		return session.CacheFresh
	}
	return session.CacheUse
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
