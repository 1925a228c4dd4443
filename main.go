package main

import (
	"os"

	"restaurants/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
