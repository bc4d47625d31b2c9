package main

import (
	"os"

	"github.com/ppiankov/hazardlog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
