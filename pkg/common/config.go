package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix every config key can be overridden with an environment variable named EnvPrefix + KEY_IN_UPPER_SNAKE_CASE,
// for example "ollamaModel" => "CARDREADER_OLLAMA_MODEL".
const EnvPrefix = "CARDREADER_"

type Config struct {
	values map[string]any
	lookup func(key string) (string, bool)
}

// LoadConfig allows to customize parameters instead of hard-coding them. Always use this function instead of
// hard-coding constants. A missing file is not an error: every accessor falls back to its default. Variables from
// a ".env" file in the working directory (if any) are loaded into the environment before the config is read.
func LoadConfig(path string) (*Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	values := make(map[string]any)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewConfig(values), nil
		}
		return nil, err
	}
	err = yaml.Unmarshal(data, &values)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return NewConfig(values), nil
}

// NewConfig creates a config from in-memory values. Environment overrides still apply.
func NewConfig(values map[string]any) *Config {
	if values == nil {
		values = make(map[string]any)
	}
	return &Config{
		values: values,
		lookup: os.LookupEnv,
	}
}

// WithEnvLookup replaces the environment lookup function. Useful in tests.
func (c *Config) WithEnvLookup(lookup func(key string) (string, bool)) *Config {
	clone := *c
	clone.lookup = lookup
	return &clone
}

// GetString returns a string-typed parameter. If nothing is found, or if the value cannot be parsed as a string,
// returns an empty value.
func (c *Config) GetString(key string) string {
	if env, ok := c.env(key); ok {
		return env
	}
	value, ok := c.values[key]
	if !ok {
		return ""
	}
	str, ok := value.(string)
	if !ok {
		return ""
	}
	return str
}

// GetStringOrDefault returns a string-typed parameter. If nothing is found, or if the value cannot be parsed as a string,
// returns `defaultValue`.
func (c *Config) GetStringOrDefault(key, defaultValue string) string {
	value := c.GetString(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetIntOrDefault returns an integer-typed parameter. If nothing is found, or if the value cannot be parsed as an integer,
// returns `defaultValue`.
func (c *Config) GetIntOrDefault(key string, defaultValue int) int {
	if env, ok := c.env(key); ok {
		intValue, err := strconv.Atoi(strings.TrimSpace(env))
		if err != nil {
			return defaultValue
		}
		return intValue
	}
	value, ok := c.values[key]
	if !ok {
		return defaultValue
	}
	intValue, ok := value.(int)
	if !ok {
		return defaultValue
	}
	return intValue
}

// GetFloatOrDefault returns a float-typed parameter. If nothing is found, or if the value cannot be parsed as a float,
// returns `defaultValue`. Integer values are accepted, too (YAML decodes "0" as an int).
func (c *Config) GetFloatOrDefault(key string, defaultValue float64) float64 {
	if env, ok := c.env(key); ok {
		floatValue, err := strconv.ParseFloat(strings.TrimSpace(env), 64)
		if err != nil {
			return defaultValue
		}
		return floatValue
	}
	value, ok := c.values[key]
	if !ok {
		return defaultValue
	}
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return defaultValue
	}
}

// GetBoolOrDefault returns a bool-typed parameter. If nothing is found, or if the value cannot be parsed as a bool,
// returns `defaultValue`.
func (c *Config) GetBoolOrDefault(key string, defaultValue bool) bool {
	if env, ok := c.env(key); ok {
		boolValue, err := strconv.ParseBool(strings.TrimSpace(env))
		if err != nil {
			return defaultValue
		}
		return boolValue
	}
	value, ok := c.values[key]
	if !ok {
		return defaultValue
	}
	boolValue, ok := value.(bool)
	if !ok {
		return defaultValue
	}
	return boolValue
}

// GetStringSliceOrDefault returns a list of strings. In YAML it's a sequence; in the environment it's a
// comma-separated list. If nothing is found returns `defaultValue`.
func (c *Config) GetStringSliceOrDefault(key string, defaultValue []string) []string {
	if env, ok := c.env(key); ok {
		var result []string
		for _, item := range strings.Split(env, ",") {
			if item = strings.TrimSpace(item); item != "" {
				result = append(result, item)
			}
		}
		return result
	}
	value, ok := c.values[key]
	if !ok {
		return defaultValue
	}
	items, ok := value.([]any)
	if !ok {
		return defaultValue
	}
	result := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return defaultValue
		}
		result = append(result, str)
	}
	return result
}

// GetDurationOrDefault returns a duration-typed parameter. If nothing is found, or if the value cannot be parsed as a duration
// (i.e. an integer which specifies milliseconds), returns `defaultValue`.
func (c *Config) GetDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	intValue := c.GetIntOrDefault(key, -1)
	if intValue < 0 {
		return defaultValue
	}
	return time.Duration(intValue) * time.Millisecond
}

func (c *Config) env(key string) (string, bool) {
	if c.lookup == nil {
		return "", false
	}
	value, ok := c.lookup(EnvVarName(key))
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvVarName converts a config key to the name of the environment variable which overrides it.
func EnvVarName(key string) string {
	var buf strings.Builder
	buf.WriteString(EnvPrefix)
	runes := []rune(key)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextIsLower) {
				buf.WriteByte('_')
			}
		}
		buf.WriteRune(unicode.ToUpper(r))
	}
	return buf.String()
}
