package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent query attempts",
		Long:  "List the newest entries of the fetch audit log, most recent first.",
		Run:   runHistory,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max entries")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	c := openCache(cfg)
	defer c.Close()

	records, err := c.RecentFetches(cmd.Context(), limit)
	if err != nil {
		exitErr("read fetch log", err)
	}

	if len(records) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(records, "", "  ")
	fmt.Println(string(b))
}
