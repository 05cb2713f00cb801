package main

import (
	"github.com/joho/godotenv"
	"github.com/ppiankov/scanfix/internal/cli"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// SCANFIX_* variables may live in a local .env file.
	_ = godotenv.Load()

	cli.SetVersion(version)
	cli.Execute()
}
