package main

import (
	"os"

	"github.com/sempicanha/commilink/cmd/commilink/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
