// Package configuration reads the application configuration from env-style
// configuration files.
package configuration

import (
	"fmt"
	"strconv"
	"time"
)

type genericConfigProvider interface {
	Read(filenames ...string) (envMap map[string]string, err error)
}

// ConfigProviderImpl reads configuration files into maps and converts the
// values held by them.
type ConfigProviderImpl struct {
	GenericConfigReader genericConfigProvider
}

// ReadGeneric reads the configuration files into a map (map[key]value).
func (c *ConfigProviderImpl) ReadGeneric(filenames ...string) (envMap map[string]string, err error) {
	return c.GenericConfigReader.Read(filenames...)
}

// MapKeyToString returns the value of a key, or the fallback if it is unset
// or empty.
func (c *ConfigProviderImpl) MapKeyToString(envMap map[string]string, key string, fallback string) string {
	if value, exists := envMap[key]; exists && value != "" {
		return value
	}

	return fallback
}

// MapKeyToInt returns the integer value of a key, or the fallback if it is
// unset or empty.
func (c *ConfigProviderImpl) MapKeyToInt(envMap map[string]string, key string, fallback int) (int, error) {
	value := c.MapKeyToString(envMap, key, "")
	if value == "" {
		return fallback, nil
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("(config-int) %w: %s=%q", ErrInvalidValue, key, value)
	}

	return intValue, nil
}

// MapKeyToDuration returns the duration value of a key (as understood by
// [time.ParseDuration]), or the fallback if it is unset or empty.
func (c *ConfigProviderImpl) MapKeyToDuration(envMap map[string]string, key string, fallback time.Duration) (time.Duration, error) {
	value := c.MapKeyToString(envMap, key, "")
	if value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("(config-duration) %w: %s=%q", ErrInvalidValue, key, value)
	}

	return d, nil
}
