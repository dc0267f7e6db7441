// Package config loads ytrss settings from defaults, a config file, the
// environment and command-line overrides, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robertmeta/ytrss/model"
	"github.com/robertmeta/ytrss/resolve"
	"github.com/robertmeta/ytrss/retry"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Name is the config file base name and the environment prefix.
const Name = "ytrss"

// Resolver kinds.
const (
	ResolverTemplate = "template"
	ResolverYtdlp    = "ytdlp"
	ResolverChain    = "chain"
)

// EnvKeyReplacer maps nested keys to environment names: resolver.kind -> YTRSS_RESOLVER_KIND.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Config is the complete configuration.
type Config struct {
	APIKeys     []string `mapstructure:"api_keys" json:"-"`
	JobsFile    string   `mapstructure:"jobs_file" json:"jobs_file"`
	OutputDir   string   `mapstructure:"output_dir" json:"output_dir"`
	BaseURL     string   `mapstructure:"base_url" json:"base_url"`
	Limit       int      `mapstructure:"limit" json:"limit"`
	Concurrency int      `mapstructure:"concurrency" json:"concurrency"`
	Shuffle     bool     `mapstructure:"shuffle" json:"shuffle"`
	Durations   bool     `mapstructure:"durations" json:"durations"`
	DB          string   `mapstructure:"db" json:"db"`

	Resolver ResolverConfig `mapstructure:"resolver" json:"resolver"`
	Retry    RetryConfig    `mapstructure:"retry" json:"retry"`
	Log      LogConfig      `mapstructure:"log" json:"log"`
}

// ResolverConfig selects and tunes the media URL resolver.
type ResolverConfig struct {
	Kind      string        `mapstructure:"kind" json:"kind"`
	Template  string        `mapstructure:"template" json:"template"`
	MimeType  string        `mapstructure:"mime_type" json:"mime_type"`
	YtdlpPath string        `mapstructure:"ytdlp_path" json:"ytdlp_path"`
	Format    string        `mapstructure:"format" json:"format"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout"`
	Rate      float64       `mapstructure:"rate" json:"rate"`
	Burst     int           `mapstructure:"burst" json:"burst"`
	MemoTTL   time.Duration `mapstructure:"memo_ttl" json:"memo_ttl"`
	Workers   int           `mapstructure:"workers" json:"workers"`
}

// RetryConfig is the backoff policy for API calls and resolutions.
type RetryConfig struct {
	MaxRetries     int           `mapstructure:"max_retries" json:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" json:"max_backoff"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	JSON  bool   `mapstructure:"json" json:"json"`
}

// Defaults holds the value of every key.
var Defaults = map[string]interface{}{
	"api_keys":                []string{},
	"jobs_file":               "list.txt",
	"output_dir":              "generated",
	"base_url":                "",
	"limit":                   50,
	"concurrency":             4,
	"shuffle":                 true,
	"durations":               true,
	"db":                      "",
	"resolver.kind":           ResolverTemplate,
	"resolver.template":       "",
	"resolver.mime_type":      "video/mp4",
	"resolver.ytdlp_path":     "yt-dlp",
	"resolver.format":         resolve.DefaultFormat,
	"resolver.timeout":        2 * time.Minute,
	"resolver.rate":           1.0,
	"resolver.burst":          2,
	"resolver.memo_ttl":       resolve.DefaultMemoTTL,
	"resolver.workers":        2,
	"retry.max_retries":       2,
	"retry.initial_backoff":   time.Second,
	"retry.max_backoff":       30 * time.Second,
	"log.level":               "info",
	"log.json":                false,
}

// Load reads the configuration. file names an explicit config file; when
// empty, ytrss.yaml is looked up in the working directory and in
// $HOME/.config/ytrss, and its absence is not an error. overrides win over
// every other source.
func Load(fs afero.Fs, file string, overrides map[string]interface{}) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)

	for key, value := range Defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(Name)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", Name))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.APIKeys = splitKeys(cfg.APIKeys)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	if c.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency must not be negative")
	}
	if c.OutputDir == "" {
		return errors.New("output_dir is required")
	}

	switch c.Resolver.Kind {
	case ResolverTemplate, ResolverYtdlp, ResolverChain:
	default:
		return fmt.Errorf("unknown resolver kind: %q", c.Resolver.Kind)
	}
	if c.Resolver.Template != "" && !strings.Contains(c.Resolver.Template, resolve.Placeholder) {
		return fmt.Errorf("resolver.template must contain %s", resolve.Placeholder)
	}
	if !model.IsMediaType(c.Resolver.MimeType) {
		return fmt.Errorf("resolver.mime_type must be an audio, video or image type: %q", c.Resolver.MimeType)
	}

	if c.Resolver.Rate < 0 || c.Resolver.Burst < 0 || c.Resolver.Workers < 0 {
		return errors.New("resolver rate, burst and workers must not be negative")
	}

	return c.RetryPolicy().Validate()
}

// RetryPolicy returns the retry.Config for the configured backoff.
func (c *Config) RetryPolicy() retry.Config {
	policy := retry.DefaultConfig()
	policy.MaxRetries = c.Retry.MaxRetries
	policy.InitialBackoff = c.Retry.InitialBackoff
	policy.MaxBackoff = c.Retry.MaxBackoff
	return policy
}

// splitKeys accepts keys given as a list or as one comma-separated value.
func splitKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		for _, part := range strings.Split(k, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
