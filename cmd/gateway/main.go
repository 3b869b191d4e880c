package main

import (
	"flag"
	"log"

	"github.com/anthanhphan/go-distributed-cache/internal/router/app"
)

func main() {
	var configPath string
	var overrides app.Overrides
	flag.StringVar(&configPath, "configPath", "", "Path to configuration file, relative to the working directory")
	flag.StringVar(&overrides.RegistryTarget, "registry", "", "Registry connect string, overrides config and environment")
	flag.Parse()

	application, err := app.New(configPath, overrides)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}
