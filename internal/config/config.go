package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds configuration for the preload command.
type Config struct {
	Manifest       string        // Manifest file or single item to load
	Root           string        // Folder relative sources are read from (default ".")
	BaseURL        string        // Base URL for network sources
	HTTP3          bool          // Fetch network sources over QUIC
	PreferNetwork  bool          // Fetch relative sources from BaseURL
	BasePath       string        // Prefix for relative sources
	MaxConnections int           // Concurrent loads (1..64, default 4)
	LoadTimeout    time.Duration // Per-item timeout (default 8s)
	StopOnError    bool          // Pause the queue on the first failure
	FeedAddr       string        // Address of the websocket event feed, empty disables it
	Play           string        // Sound id played once loading completes
	Output         bool          // Play through the platform audio device
	NoUI           bool          // Log instead of showing a progress bar
	LogLevel       string
}

const defaultConfigPath = "gameassets.toml"

var ErrMissingManifest = errors.New("config: no manifest given")

func defaults() Config {
	return Config{
		Root:           ".",
		MaxConnections: 4,
		LoadTimeout:    8 * time.Second,
		Output:         true,
		LogLevel:       "info",
	}
}

// fileConfig mirrors the TOML file. Pointers tell unset keys apart.
type fileConfig struct {
	Manifest       *string `toml:"manifest"`
	Root           *string `toml:"root"`
	BaseURL        *string `toml:"base_url"`
	HTTP3          *bool   `toml:"http3"`
	PreferNetwork  *bool   `toml:"prefer_network"`
	BasePath       *string `toml:"base_path"`
	MaxConnections *int    `toml:"max_connections"`
	LoadTimeout    *string `toml:"load_timeout"`
	StopOnError    *bool   `toml:"stop_on_error"`
	FeedAddr       *string `toml:"feed_addr"`
	Play           *string `toml:"play"`
	Output         *bool   `toml:"output"`
	LogLevel       *string `toml:"log_level"`
}

// Parse reads configuration from a TOML file, environment variables and
// flags, each overriding the previous one.
// The file is gameassets.toml unless -config or GAMEASSETS_CONFIG names another one.
func Parse() (Config, error) {
	return parseConfigWithFlagSet(flag.CommandLine, os.Args[1:])
}

// parseConfigWithFlagSet is an internal helper for testing with isolated flag sets.
func parseConfigWithFlagSet(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaults()

	path, explicit := configPath(args)
	if err := loadFile(&cfg, path, explicit); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	// Flags override environment
	fs.String("config", path, "TOML configuration file")
	fs.StringVar(&cfg.Manifest, "manifest", cfg.Manifest, "manifest file or item to load")
	fs.StringVar(&cfg.Root, "root", cfg.Root, "folder relative sources are read from")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "base URL for network sources")
	fs.BoolVar(&cfg.HTTP3, "http3", cfg.HTTP3, "fetch network sources over HTTP/3")
	fs.BoolVar(&cfg.PreferNetwork, "prefer-network", cfg.PreferNetwork, "fetch relative sources from the base URL")
	fs.StringVar(&cfg.BasePath, "base-path", cfg.BasePath, "prefix for relative sources")
	fs.IntVar(&cfg.MaxConnections, "connections", cfg.MaxConnections, "concurrent loads (1..64)")
	fs.DurationVar(&cfg.LoadTimeout, "timeout", cfg.LoadTimeout, "per-item load timeout")
	fs.BoolVar(&cfg.StopOnError, "stop-on-error", cfg.StopOnError, "stop loading on the first failure")
	fs.StringVar(&cfg.FeedAddr, "feed", cfg.FeedAddr, "serve queue events over websocket on this address")
	fs.StringVar(&cfg.Play, "play", cfg.Play, "sound to play once loading completes")
	fs.BoolVar(&cfg.Output, "output", cfg.Output, "play through the audio device")
	fs.BoolVar(&cfg.NoUI, "no-ui", cfg.NoUI, "log progress instead of drawing a progress bar")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// A positional argument names the manifest too
	if fs.NArg() > 0 {
		cfg.Manifest = fs.Arg(0)
	}
	if strings.TrimSpace(cfg.Manifest) == "" {
		return Config{}, ErrMissingManifest
	}

	if cfg.MaxConnections < 1 {
		cfg.MaxConnections = 1
	}
	if cfg.MaxConnections > 64 {
		cfg.MaxConnections = 64
	}

	return cfg, nil
}

// configPath finds the configuration file before the flags are parsed.
func configPath(args []string) (string, bool) {
	for i, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if name == arg || arg == "--" {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v, true
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1], true
		}
	}
	if p := os.Getenv("GAMEASSETS_CONFIG"); p != "" {
		return p, true
	}
	return defaultConfigPath, false
}

// loadFile applies the TOML file at path. A missing default file is not an error.
func loadFile(cfg *Config, path string, explicit bool) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&cfg.Manifest, raw.Manifest)
	setString(&cfg.Root, raw.Root)
	setString(&cfg.BaseURL, raw.BaseURL)
	setString(&cfg.BasePath, raw.BasePath)
	setString(&cfg.FeedAddr, raw.FeedAddr)
	setString(&cfg.Play, raw.Play)
	setString(&cfg.LogLevel, raw.LogLevel)
	setBool(&cfg.HTTP3, raw.HTTP3)
	setBool(&cfg.PreferNetwork, raw.PreferNetwork)
	setBool(&cfg.StopOnError, raw.StopOnError)
	setBool(&cfg.Output, raw.Output)
	if raw.MaxConnections != nil {
		cfg.MaxConnections = *raw.MaxConnections
	}
	if raw.LoadTimeout != nil {
		d, err := time.ParseDuration(*raw.LoadTimeout)
		if err != nil {
			return fmt.Errorf("parse config: load_timeout: %w", err)
		}
		cfg.LoadTimeout = d
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil && strings.TrimSpace(*v) != "" {
		*dst = strings.TrimSpace(*v)
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func applyEnv(cfg *Config) error {
	for _, s := range []struct {
		key string
		dst *string
	}{
		{"GAMEASSETS_MANIFEST", &cfg.Manifest},
		{"GAMEASSETS_ROOT", &cfg.Root},
		{"GAMEASSETS_BASE_URL", &cfg.BaseURL},
		{"GAMEASSETS_BASE_PATH", &cfg.BasePath},
		{"GAMEASSETS_FEED", &cfg.FeedAddr},
		{"GAMEASSETS_LOG_LEVEL", &cfg.LogLevel},
	} {
		if v := os.Getenv(s.key); v != "" {
			*s.dst = v
		}
	}
	if v := os.Getenv("GAMEASSETS_CONNECTIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GAMEASSETS_CONNECTIONS: %w", err)
		}
		cfg.MaxConnections = n
	}
	if v := os.Getenv("GAMEASSETS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GAMEASSETS_TIMEOUT: %w", err)
		}
		cfg.LoadTimeout = d
	}
	if v := os.Getenv("GAMEASSETS_HTTP3"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GAMEASSETS_HTTP3: %w", err)
		}
		cfg.HTTP3 = b
	}
	return nil
}
