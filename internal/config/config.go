// Package config handles loading and persisting user configuration for the
// wizard sandbox. Settings are layered: defaults, then
// ~/.wizard-sandbox/config.yaml, then WIZARD_* environment variables, then
// command-line flags, then a startup query string.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	dirName   = ".wizard-sandbox"
	fileName  = "config.yaml"
	envPrefix = "WIZARD"

	DefaultAPIURL      = "https://matthoffner-wizardcoder-ggml.hf.space/v0/chat/completions"
	DefaultEndpoint    = "messages"
	DefaultFollowUp    = "create an improved version"
	DefaultPreviewAddr = "127.0.0.1:8765"
	defaultTimeout     = 300
)

// Config holds the user's configuration.
type Config struct {
	APIURL         string        `mapstructure:"api_url" yaml:"api_url"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Endpoint       string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model          string        `mapstructure:"model" yaml:"model,omitempty"`
	ClearMode      bool          `mapstructure:"clear_mode" yaml:"clear_mode"`
	AutoMode       bool          `mapstructure:"auto_mode" yaml:"auto_mode"`
	FollowUp       string        `mapstructure:"follow_up" yaml:"follow_up"`
	SystemPrompt   string        `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Params         Params        `mapstructure:"params" yaml:"params,omitempty"`
	Preview        PreviewConfig `mapstructure:"preview" yaml:"preview"`
}

// Params are generation parameters passed through to the endpoint.
type Params struct {
	Temperature      *float64 `mapstructure:"temperature" yaml:"temperature,omitempty"`
	MaxTokens        int      `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
	TopP             *float64 `mapstructure:"top_p" yaml:"top_p,omitempty"`
	FrequencyPenalty float64  `mapstructure:"frequency_penalty" yaml:"frequency_penalty,omitempty"`
	PresencePenalty  float64  `mapstructure:"presence_penalty" yaml:"presence_penalty,omitempty"`
	Stop             []string `mapstructure:"stop" yaml:"stop,omitempty"`
}

// PreviewConfig controls the live preview server and headless renderer.
type PreviewConfig struct {
	Addr       string `mapstructure:"addr" yaml:"addr"`
	Chrome     bool   `mapstructure:"chrome" yaml:"chrome"`
	ChromePath string `mapstructure:"chrome_path" yaml:"chrome_path,omitempty"`
}

// Timeout is how long to wait for the endpoint to start responding.
// Zero waits indefinitely.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

// Path returns the default config file path.
func Path() string {
	return filepath.Join(Dir(), fileName)
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"api-url":    "api_url",
	"api-key":    "api_key",
	"endpoint":   "endpoint",
	"model":      "model",
	"clear-mode": "clear_mode",
	"auto-mode":  "auto_mode",
	"follow-up":  "follow_up",
	"preview":    "preview.addr",
	"chrome":     "preview.chrome",
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		APIURL:         DefaultAPIURL,
		Endpoint:       DefaultEndpoint,
		FollowUp:       DefaultFollowUp,
		TimeoutSeconds: defaultTimeout,
		Preview:        PreviewConfig{Addr: DefaultPreviewAddr},
	}
}

func newViper(path string) *viper.Viper {
	d := Defaults()
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("api_url", d.APIURL)
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("endpoint", d.Endpoint)
	v.SetDefault("model", d.Model)
	v.SetDefault("clear_mode", d.ClearMode)
	v.SetDefault("auto_mode", d.AutoMode)
	v.SetDefault("follow_up", d.FollowUp)
	v.SetDefault("system_prompt", d.SystemPrompt)
	v.SetDefault("timeout_seconds", d.TimeoutSeconds)
	v.SetDefault("preview.addr", d.Preview.Addr)
	v.SetDefault("preview.chrome", d.Preview.Chrome)
	v.SetDefault("preview.chrome_path", d.Preview.ChromePath)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. path may be empty for the default file; a
// missing file is not an error. flags may be nil; only flags the user set
// override lower layers. A "query" flag, when set, is applied last.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if path == "" {
		path = Path()
	}
	v := newViper(path)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if flags != nil {
		if q, err := flags.GetString("query"); err == nil && q != "" {
			if err := ApplyQuery(cfg, q); err != nil {
				return nil, err
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values a transport cannot work without.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_url must include scheme and host (e.g. https://example.com/v1/chat/completions), got %q", c.APIURL)
	}
	switch c.Endpoint {
	case "messages", "prompt", "openai":
	default:
		return fmt.Errorf("unsupported endpoint %q (want messages, prompt or openai)", c.Endpoint)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}
	return nil
}

// ApplyQuery applies a browser-style query string such as
// "?API_URL=http://localhost:8000/v1&clearMode=true&autoMode". A key given
// without a value counts as true.
func ApplyQuery(cfg *Config, raw string) error {
	values, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return fmt.Errorf("invalid query %q: %w", raw, err)
	}
	if u := values.Get("API_URL"); u != "" {
		cfg.APIURL = u
	}
	for key, dst := range map[string]*bool{"clearMode": &cfg.ClearMode, "autoMode": &cfg.AutoMode} {
		if !values.Has(key) {
			continue
		}
		b, err := parseFlag(values.Get(key))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

func parseFlag(s string) (bool, error) {
	if s == "" {
		return true, nil
	}
	return strconv.ParseBool(s)
}
