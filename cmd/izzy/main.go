package main

import (
	"os"

	"github.com/joho/godotenv"
)

// set with -ldflags "-X main.version=... -X main.gitSHA=..."
var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	// optional; IZZY_* variables may come from a .env next to the binary
	godotenv.Load(".env")

	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
