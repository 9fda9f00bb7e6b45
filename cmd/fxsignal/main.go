package main

import (
	"os"

	"github.com/rustyeddy/fxsignal/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
