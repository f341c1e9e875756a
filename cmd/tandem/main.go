package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// A .env next to the binary is optional
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
