package main

import (
	"flag"
	"log"

	"github.com/anthanhphan/go-distributed-cache/internal/loadgen/app"
)

func main() {
	var configPath string
	var overrides app.Overrides
	flag.StringVar(&configPath, "configPath", "", "Path to configuration file, relative to the working directory")
	flag.StringVar(&overrides.RegistryTarget, "registry", "", "Registry connect string, overrides config and environment")
	flag.IntVar(&overrides.Workers, "workers", 0, "Number of concurrent workers, overrides config")
	flag.IntVar(&overrides.DurationMS, "duration_ms", 0, "Run time in milliseconds, overrides config")
	flag.Parse()

	application, err := app.New(configPath, overrides)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}
