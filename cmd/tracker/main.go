package main

import (
	"os"

	"github.com/financetracker/finance-tracker-go/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
