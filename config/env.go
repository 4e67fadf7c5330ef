package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads variables from REVIEWSCOPE_ENV_FILE, or from ./.env
// when that is unset. Variables already present in the environment win.
// A missing ./.env is not an error; a missing explicit file is.
func LoadEnvFile() error {
	if path := os.Getenv("REVIEWSCOPE_ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	_ = godotenv.Load()
	return nil
}
