package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/culturequiz/backend/internal/app"
)

func main() {
	// Local development convenience; deployments set real env vars.
	_ = godotenv.Load()

	application, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	application.Start()

	if err := application.Run(); err != nil {
		application.Log.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
