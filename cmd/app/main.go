package main

import (
	"context"
	"flag"
	"log"
	"os"

	"CropCast/internal/di"
	"CropCast/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()
	app, cleanup, err := di.InitializeApp(ctx, cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	defer cleanup()

	// Run application (blocks until signal)
	if err := app.Run(ctx); err != nil {
		cleanup()
		os.Exit(1)
	}
}
