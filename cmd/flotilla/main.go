package main

import (
	"os"

	"github.com/flotilla-orch/flotilla/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
