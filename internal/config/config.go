package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Node        string
	Alias       string
	DisplayName string
	PIN         string
}

// Load reads configuration from a .env file (if present) and environment
// variables. Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	node := os.Getenv("CONF_NODE")
	if node == "" {
		return nil, fmt.Errorf("CONF_NODE environment variable is required")
	}

	alias := os.Getenv("CONF_ALIAS")
	if alias == "" {
		return nil, fmt.Errorf("CONF_ALIAS environment variable is required")
	}

	name := os.Getenv("CONF_NAME")
	if name == "" {
		name = "confstream"
	}

	return &Config{
		Node:        node,
		Alias:       alias,
		DisplayName: name,
		PIN:         os.Getenv("CONF_PIN"),
	}, nil
}
