// Package main is the entry point for the restfdw CLI binary.
package main

import (
	"os"

	"duck-restfdw/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
