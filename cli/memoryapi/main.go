package main

import (
	"os"

	"github.com/joho/godotenv"

	memoryapicmder "github.com/sumrendra/memory-api/cmd/memoryapi"
)

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	cmd := memoryapicmder.NewMemoryAPICmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
