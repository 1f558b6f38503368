package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables carrying secrets and per-host overrides; none of
// these belong in the JSON config file.
const (
	EnvPrivateKey  = "FLASHARB_PRIVATE_KEY"
	EnvRPCEndpoint = "FLASHARB_RPC_ENDPOINT"
)

// LoadEnv loads environment variables from the given dotenv files, or from
// ./.env when none are named. Variables already set in the environment win.
func LoadEnv(files ...string) error {
	return godotenv.Load(files...)
}

// GetEnvWithDefault returns the variable's value, or defaultValue when it
// is unset or empty.
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetRequiredEnv returns the variable's value or an error when it is unset.
func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s not set", key)
	}
	return value, nil
}
