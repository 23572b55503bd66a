package main

import (
	"os"

	"github.com/cuckooeats/backoffice/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
