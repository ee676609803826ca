package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tkummer/hrfetch/internal/driver"
	"github.com/tkummer/hrfetch/internal/model"
	"github.com/tkummer/hrfetch/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "batch [companies.csv]",
		Short: "Run queries for a CSV of company names",
		Long:  "Read company names from the first column of a CSV file (header row skipped) and run the pipeline for each. One failing name never aborts the batch.",
		Args:  cobra.ExactArgs(1),
		Run:   runBatch,
	}

	cmd.Flags().StringP("mode", "m", "exact", "Keyword matching: all, min or exact")
	cmd.Flags().IntP("concurrency", "c", 0, "Concurrent queries (default from HRFETCH_CONCURRENCY)")

	RootCmd.AddCommand(cmd)
}

func runBatch(cmd *cobra.Command, args []string) {
	modeStr, _ := cmd.Flags().GetString("mode")
	mode, err := model.ParseMatchMode(modeStr)
	if err != nil {
		exitErr("parse mode", err)
	}

	names, err := driver.ReadNames(args[0])
	if err != nil {
		exitErr("read company names", err)
	}
	if len(names) == 0 {
		exitErr("read company names", errors.New("no names in first column"))
	}

	cfg := loadConfig()
	if c, _ := cmd.Flags().GetInt("concurrency"); c > 0 {
		cfg.Concurrency = c
	}
	logger := newLogger()

	ca := openCache(cfg)
	defer ca.Close()

	d := driver.New(cfg, store.New(outputPath), ca, logger, os.Stdout)
	outcomes := d.Run(cmd.Context(), names, mode, cacheMode())

	var failed int
	for _, o := range outcomes {
		if o.Err != nil && !errors.Is(o.Err, model.ErrNoResults) {
			failed++
		}
	}

	fmt.Printf("%d/%d succeeded, results in %s\n", len(outcomes)-failed, len(outcomes), outputPath)
	if failed > 0 {
		os.Exit(1)
	}
}
