package main

import (
	"os"

	"github.com/skylens-io/skylens/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
