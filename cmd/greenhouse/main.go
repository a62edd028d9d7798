package main

import (
	"log"

	"github.com/prite36/smartfarm-controller/internal/config"
	"github.com/prite36/smartfarm-controller/internal/service"
)

func main() {
	log.Println("Starting application...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := service.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Blocks until a shutdown signal or a SYS_OFF from the sensor board
	if err := app.Start(); err != nil {
		log.Fatalf("Application stopped with error: %v", err)
	}

	log.Println("Application shut down.")
}
