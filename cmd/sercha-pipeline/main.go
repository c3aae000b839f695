package main

import (
	"github.com/joho/godotenv"

	"github.com/custodia-labs/sercha-pipeline/internal/adapters/driving/cli"
)

func main() {
	// Optional .env file for local development.
	_ = godotenv.Load()

	cli.Execute()
}
