// Command mother is a supervisor-side probe: it sends Hellos to a unit and
// prints the status replies.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load(".env")

	if err := NewProbeCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
