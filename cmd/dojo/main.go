package main

import (
	"os"

	"github.com/PabloGalante/smalltalk-dojo/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
