package main

import (
	"flag"
	"log"

	"github.com/anthanhphan/go-distributed-cache/internal/cacheserver/app"
)

func main() {
	var configPath string
	var overrides app.Overrides
	flag.StringVar(&configPath, "configPath", "", "Path to configuration file, relative to the working directory")
	flag.IntVar(&overrides.Port, "port", 0, "Listen port, overrides config")
	flag.StringVar(&overrides.RegistryTarget, "registry", "", "Registry connect string, overrides config and environment")
	flag.Parse()

	application, err := app.New(configPath, overrides)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
