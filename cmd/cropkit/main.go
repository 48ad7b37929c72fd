package main

import (
	"os"

	"github.com/menta2k/cropkit/cmd/cropkit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
