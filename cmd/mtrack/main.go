package main

import (
	"github.com/joho/godotenv"

	"github.com/emiliopalmerini/mtrack/internal/cli"
)

func main() {
	// .env in the working directory is optional.
	_ = godotenv.Load()
	cli.Execute()
}
