// Package main provides the entry point for wwwhisper-admin.
//
// wwwhisper-admin manages users, locations and grants, either through
// the admin API of a running server or directly on its store.
package main

import (
	"fmt"
	"os"

	"github.com/nguyendn/wwwhisper/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
