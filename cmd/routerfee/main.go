package main

import (
	"os"

	"github.com/asanchezr/routerfee/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
