// Package main is the entry point for the document chat service.
package main

import (
	"os"

	"github.com/kart-io/docchat/cmd/docchat/app"
)

func main() {
	if err := app.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
