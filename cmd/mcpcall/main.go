package main

import (
	"os"

	"github.com/moolen/mcpcall/cmd/mcpcall/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
