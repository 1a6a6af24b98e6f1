package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultConfigDir is used when APPLICATION_CONFIGURATION_DIR is unset.
	DefaultConfigDir = "./configs"
	// DefaultEnvPrefix is used when APPLICATION_CONFIGURATION_PREFIX is unset.
	DefaultEnvPrefix = "CLOUDNEST"
)

// defaults are applied before any file or environment layer.
var defaults = map[string]interface{}{
	"server.port":            4000,
	"server.readTimeout":     15,
	"server.writeTimeout":    15,
	"server.idleTimeout":     60,
	"server.shutdownTimeout": 10,
	"server.lockFile":        "",
	"app.title":              "CloudNest v2 - CI Working",
	"app.environment":        "Production",
	"logging.level":          "info",
	"logging.format":         "text",
}

// Config wraps koanf.Koanf and scopes key lookups under prefix.
// The root config has an empty prefix; GetSubConfig appends to it.
type Config struct {
	k      *koanf.Koanf
	prefix string
}

// New returns a root config holding only the built-in defaults.
func New() *Config {
	k := koanf.New(".")
	for key, value := range defaults {
		k.Set(key, value)
	}
	return &Config{k: k}
}

// Load layers configuration in this order, later layers winning:
//
//   - built-in defaults
//   - <dir>/application.yaml
//   - <dir>/application-<profile>.yaml for every profile in APPLICATION_PROFILES_ACTIVE, in order
//   - environment variables starting with <prefix>_ (CLOUDNEST_SERVER_PORT -> server.port)
//
// dir comes from APPLICATION_CONFIGURATION_DIR and prefix from APPLICATION_CONFIGURATION_PREFIX.
// A missing directory or base file is not an error; the service then runs on defaults.
func Load() (*Config, error) {
	cfg := New()
	k := cfg.k

	// Only warnings are reported while loading; the service announces itself once it is bound.
	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	configDir := os.Getenv("APPLICATION_CONFIGURATION_DIR")
	if configDir == "" {
		configDir = DefaultConfigDir
	}

	baseConfigPath := filepath.Join(configDir, "application.yaml")
	if _, err := os.Stat(baseConfigPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat base configuration: %w", err)
		}
	} else if err := k.Load(file.Provider(baseConfigPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load base configuration: %w", err)
	}

	for _, profile := range activeProfiles() {
		profileConfigPath := filepath.Join(configDir, fmt.Sprintf("application-%s.yaml", profile))
		if _, err := os.Stat(profileConfigPath); os.IsNotExist(err) {
			tempLogger.Warn("Profile configuration file not found", "profile", profile, "file", profileConfigPath)
			continue
		}
		if err := k.Load(file.Provider(profileConfigPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load profile configuration %s: %w", profile, err)
		}
	}

	envPrefix := os.Getenv("APPLICATION_CONFIGURATION_PREFIX")
	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}
	if err := k.Load(env.Provider(envPrefix+"_", ".", envKeyMapper(envPrefix)), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables with prefix %s: %w", envPrefix, err)
	}

	if _, err := cfg.GetPort("server.port", 4000); err != nil {
		return nil, err
	}

	return cfg, nil
}

// activeProfiles parses APPLICATION_PROFILES_ACTIVE, dropping blanks.
func activeProfiles() []string {
	var profiles []string
	for _, p := range strings.Split(os.Getenv("APPLICATION_PROFILES_ACTIVE"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			profiles = append(profiles, p)
		}
	}
	return profiles
}

// envKeyMapper turns CLOUDNEST_SERVER_LOCKFILE into server.lockFile. Segments are matched
// case-insensitively against the default keys so camelCase keys stay reachable from the
// environment.
func envKeyMapper(prefix string) func(string) string {
	known := make(map[string]string, len(defaults))
	for key := range defaults {
		known[strings.ToLower(key)] = key
	}
	return func(s string) string {
		s = strings.TrimPrefix(s, prefix+"_")
		key := strings.ToLower(strings.ReplaceAll(s, "_", "."))
		if canonical, ok := known[key]; ok {
			return canonical
		}
		return key
	}
}

// buildKey constructs the full key with current prefix
func (c *Config) buildKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + "." + key
}

// GetSubConfig returns a configuration instance for a specific sub-tree
func (c *Config) GetSubConfig(prefix string) *Config {
	return &Config{
		k:      c.k,
		prefix: c.buildKey(prefix),
	}
}

// Set overrides a single key relative to the current prefix.
func (c *Config) Set(key string, value interface{}) error {
	return c.k.Set(c.buildKey(key), value)
}

// GetString gets a string value by key
func (c *Config) GetString(key string) string {
	return c.k.String(c.buildKey(key))
}

// GetInt gets an integer value by key
func (c *Config) GetInt(key string) int {
	return c.k.Int(c.buildKey(key))
}

// GetBool gets a boolean value by key
func (c *Config) GetBool(key string) bool {
	return c.k.Bool(c.buildKey(key))
}

// GetSeconds reads an integer number of seconds.
func (c *Config) GetSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(c.GetIntWithDefault(key, defaultSeconds)) * time.Second
}

// GetPort reads a TCP port. Values that are not integers in [0, 65535] are
// rejected rather than coerced to 0, which would bind a random port.
func (c *Config) GetPort(key string, defaultPort int) (int, error) {
	if !c.Exists(key) {
		return defaultPort, nil
	}

	var port int
	switch v := c.k.Get(c.buildKey(key)).(type) {
	case int:
		port = v
	case int64:
		port = int(v)
	case uint64:
		port = int(v)
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("invalid %s %v: not an integer", c.buildKey(key), v)
		}
		port = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: not an integer", c.buildKey(key), v)
		}
		port = parsed
	default:
		return 0, fmt.Errorf("invalid %s %v: unsupported type %T", c.buildKey(key), v, v)
	}

	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid %s %d: out of range 0-65535", c.buildKey(key), port)
	}
	return port, nil
}

// Exists checks if a key exists
func (c *Config) Exists(key string) bool {
	return c.k.Exists(c.buildKey(key))
}

// GetStringWithDefault gets a string value with a default fallback
func (c *Config) GetStringWithDefault(key, defaultValue string) string {
	if c.Exists(key) {
		return c.GetString(key)
	}
	return defaultValue
}

// GetIntWithDefault gets an integer value with a default fallback
func (c *Config) GetIntWithDefault(key string, defaultValue int) int {
	if c.Exists(key) {
		return c.GetInt(key)
	}
	return defaultValue
}

// GetBoolWithDefault gets a boolean value with a default fallback
func (c *Config) GetBoolWithDefault(key string, defaultValue bool) bool {
	if c.Exists(key) {
		return c.GetBool(key)
	}
	return defaultValue
}

// GetLogLevel gets the log level from configuration with default fallback
func (c *Config) GetLogLevel(defaultLevel slog.Level) slog.Level {
	switch strings.ToLower(c.GetString("logging.level")) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultLevel
	}
}

// Keys returns the direct children of the current prefix.
func (c *Config) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, key := range c.k.Keys() {
		relative := key
		if c.prefix != "" {
			var ok bool
			relative, ok = strings.CutPrefix(key, c.prefix+".")
			if !ok {
				continue
			}
		}
		child, _, _ := strings.Cut(relative, ".")
		if !seen[child] {
			seen[child] = true
			keys = append(keys, child)
		}
	}
	return keys
}

// All returns every key under the current prefix, relative to it.
func (c *Config) All() map[string]interface{} {
	result := make(map[string]interface{})
	for _, key := range c.k.Keys() {
		relative := key
		if c.prefix != "" {
			var ok bool
			relative, ok = strings.CutPrefix(key, c.prefix+".")
			if !ok {
				continue
			}
		}
		result[relative] = c.k.Get(key)
	}
	return result
}
