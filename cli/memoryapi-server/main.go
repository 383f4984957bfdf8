package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	servecmder "github.com/sumrendra/memory-api/cmd/memoryapi/serve"
)

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	cmd := servecmder.NewServeCmd()
	cmd.Use = "memoryapi-server"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .memoryapi/ config directory")

	err := cmd.Execute()
	if err != nil {
		fmt.Printf("Error executing root command: %v\n", err)
		os.Exit(1)
	}
}
