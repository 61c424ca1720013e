package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// setter parses value into the matching Config field.
type setter func(cfg *Config, value string) error

func stringSetter(field func(*Config) *string) setter {
	return func(cfg *Config, value string) error {
		*field(cfg) = value
		return nil
	}
}

func boolSetter(field func(*Config) *bool) setter {
	return func(cfg *Config, value string) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

func floatPtrSetter(field func(*Config) **float64) setter {
	return func(cfg *Config, value string) error {
		if value == "" {
			*field(cfg) = nil
			return nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		*field(cfg) = &f
		return nil
	}
}

func floatSetter(field func(*Config) *float64) setter {
	return func(cfg *Config, value string) error {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		*field(cfg) = f
		return nil
	}
}

func intSetter(field func(*Config) *int) setter {
	return func(cfg *Config, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

var setters = map[string]setter{
	"api_url":                  stringSetter(func(c *Config) *string { return &c.APIURL }),
	"api_key":                  stringSetter(func(c *Config) *string { return &c.APIKey }),
	"endpoint":                 stringSetter(func(c *Config) *string { return &c.Endpoint }),
	"model":                    stringSetter(func(c *Config) *string { return &c.Model }),
	"follow_up":                stringSetter(func(c *Config) *string { return &c.FollowUp }),
	"system_prompt":            stringSetter(func(c *Config) *string { return &c.SystemPrompt }),
	"clear_mode":               boolSetter(func(c *Config) *bool { return &c.ClearMode }),
	"auto_mode":                boolSetter(func(c *Config) *bool { return &c.AutoMode }),
	"timeout_seconds":          intSetter(func(c *Config) *int { return &c.TimeoutSeconds }),
	"params.temperature":       floatPtrSetter(func(c *Config) **float64 { return &c.Params.Temperature }),
	"params.top_p":             floatPtrSetter(func(c *Config) **float64 { return &c.Params.TopP }),
	"params.max_tokens":        intSetter(func(c *Config) *int { return &c.Params.MaxTokens }),
	"params.frequency_penalty": floatSetter(func(c *Config) *float64 { return &c.Params.FrequencyPenalty }),
	"params.presence_penalty":  floatSetter(func(c *Config) *float64 { return &c.Params.PresencePenalty }),
	"params.stop": func(c *Config, value string) error {
		c.Params.Stop = nil
		for _, s := range strings.Split(value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Params.Stop = append(c.Params.Stop, s)
			}
		}
		return nil
	},
	"preview.addr":        stringSetter(func(c *Config) *string { return &c.Preview.Addr }),
	"preview.chrome":      boolSetter(func(c *Config) *bool { return &c.Preview.Chrome }),
	"preview.chrome_path": stringSetter(func(c *Config) *string { return &c.Preview.ChromePath }),
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// readFile returns the defaults overlaid with the file at path, ignoring
// the environment and flags so that Set never persists them.
func readFile(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save persists cfg as YAML at path (the default file when empty).
func Save(path string, cfg *Config) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Set updates one key in the config file at path.
func Set(path, key, value string) error {
	if path == "" {
		path = Path()
	}
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown key %q (valid keys: %s)", key, strings.Join(Keys(), ", "))
	}
	cfg, err := readFile(path)
	if err != nil {
		return err
	}
	if err := set(cfg, value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return Save(path, cfg)
}

// Redacted renders cfg as YAML with the API key masked.
func Redacted(cfg *Config) ([]byte, error) {
	c := *cfg
	if c.APIKey != "" {
		c.APIKey = maskKey(c.APIKey)
	}
	return yaml.Marshal(&c)
}

func maskKey(k string) string {
	if len(k) <= 8 {
		return strings.Repeat("*", len(k))
	}
	return k[:4] + strings.Repeat("*", len(k)-8) + k[len(k)-4:]
}
