// Package main provides the entry point for the syncignore CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/syncignore/cmd/syncignore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
