package main

import (
	"os"

	"github.com/rstrack/rstrack/cmd/rstrack/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
