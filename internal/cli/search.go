package cli

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tkummer/hrfetch/internal/driver"
	"github.com/tkummer/hrfetch/internal/model"
	"github.com/tkummer/hrfetch/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [keywords]",
		Short: "Run one registry query",
		Long:  "Search the register for the given keywords, download the document export, and upsert the reconciled record into the output workbook.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("mode", "m", "exact", "Keyword matching: all=contain all keywords; min=contain at least one keyword; exact=contain the exact company name")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	modeStr, _ := cmd.Flags().GetString("mode")
	mode, err := model.ParseMatchMode(modeStr)
	if err != nil {
		exitErr("parse mode", err)
	}

	cfg := loadConfig()
	logger := newLogger()

	c := openCache(cfg)
	defer c.Close()

	d := driver.New(cfg, store.New(outputPath), c, logger, os.Stdout)

	keywords := strings.Join(args, " ")
	outcomes := d.Run(cmd.Context(), []string{keywords}, mode, cacheMode())

	if err := outcomes[0].Err; err != nil && !errors.Is(err, model.ErrNoResults) {
		os.Exit(1)
	}
}
