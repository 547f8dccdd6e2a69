package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/tmcfarland/usagedeck/internal/config"
)

// Prints the effective merged configuration, defaults and env included.
func main() {
	cfg, err := config.Load(config.Options{})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		log.Fatalf("encode config: %v", err)
	}
}
