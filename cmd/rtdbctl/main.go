package main

import (
	"fmt"
	"os"

	"rtdb-bridge/internal/cli"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal for a CLI.
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
