package main

import (
	"errors"
	"fmt"
	"os"

	"sheetdrill/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !errors.Is(err, cli.ErrIncomplete) {
			fmt.Fprintf(os.Stderr, "sheetdrill: %v\n", err)
		}
		os.Exit(1)
	}
}
