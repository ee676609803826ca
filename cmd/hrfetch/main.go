package main

import (
	"os"

	"github.com/tkummer/hrfetch/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
