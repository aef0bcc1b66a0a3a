package configuration

import (
	"fmt"

	"github.com/joho/godotenv"
)

// GodotenvProvider is an implementation reading env-style configuration
// files through godotenv. Later files override keys of earlier ones.
type GodotenvProvider struct{}

// Read reads the configuration files into a map (map[key]value).
func (*GodotenvProvider) Read(filenames ...string) (map[string]string, error) {
	envMap, err := godotenv.Read(filenames...)
	if err != nil {
		return nil, fmt.Errorf("(config-godotenv) %w", err)
	}

	return envMap, nil
}
