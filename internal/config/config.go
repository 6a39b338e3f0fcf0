// Package config loads and validates the runway.toml project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	FileName = "runway.toml"

	// DataDirName is the machine-local directory under the project root that
	// holds the local cache and local state. Keep it out of version control.
	DataDirName = ".runway"

	// StateFileName is the durable, version-controlled state file.
	StateFileName = "runway-state.toml"
)

var (
	ErrConfig        = errors.New("config: invalid configuration")
	ErrUnknownTarget = fmt.Errorf("%w: unknown target", ErrConfig)
)

type TargetType string

const (
	TargetLocal TargetType = "local"
	TargetCloud TargetType = "cloud"
	TargetS3    TargetType = "s3"
)

// Durable reports whether records for this target type belong in the
// version-controlled state file rather than the machine-local store.
func (t TargetType) Durable() bool {
	return t == TargetCloud || t == TargetS3
}

// Config is the parsed content of a runway.toml file.
type Config struct {
	// Name namespaces the local cache. Defaults to the project folder name.
	Name     string          `mapstructure:"name"`
	Targets  []TargetConfig  `mapstructure:"target"`
	Inputs   []InputConfig   `mapstructure:"input"`
	Codegens []CodegenConfig `mapstructure:"codegen"`

	// FilePath is the file this config was read from. Relative paths in the
	// config are relative to its folder.
	FilePath string `mapstructure:"-"`
}

// TargetConfig selects a sync destination. Key defaults to Type, so a second
// target of the same type needs an explicit key.
type TargetConfig struct {
	Key  string     `mapstructure:"key"`
	Type TargetType `mapstructure:"type"`

	// s3 only
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PublicURL string `mapstructure:"public_url"`
	Prefix    string `mapstructure:"prefix"`
}

// InputConfig is a glob, relative to the project root, matching asset files.
type InputConfig struct {
	Glob string `mapstructure:"glob"`
}

// CodegenConfig describes one generated output file.
type CodegenConfig struct {
	Path           string `mapstructure:"path"`
	Format         string `mapstructure:"format"`
	Flatten        bool   `mapstructure:"flatten"`
	StripPrefix    string `mapstructure:"strip_prefix"`
	StripExtension bool   `mapstructure:"strip_extension"`
}

// Load reads a config from a runway.toml file, or from a folder containing one.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config stat: %w", err)
	}
	if info.IsDir() {
		path = filepath.Join(path, FileName)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config path: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(absPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read '%s': %w", ErrConfig, absPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode '%s': %w", ErrConfig, absPath, err)
	}
	cfg.FilePath = absPath
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	if c.Name == "" {
		c.Name = filepath.Base(c.Root())
	}
	for i := range c.Targets {
		t := &c.Targets[i]
		t.Type = TargetType(strings.ToLower(strings.TrimSpace(string(t.Type))))
		// the original hosting service name is accepted as an alias
		if t.Type == "roblox" {
			t.Type = TargetCloud
		}
		if t.Key == "" {
			t.Key = string(t.Type)
		}
		t.Prefix = strings.Trim(t.Prefix, "/")
		t.PublicURL = strings.TrimSuffix(t.PublicURL, "/")
	}
	for i := range c.Codegens {
		c.Codegens[i].Format = strings.ToLower(strings.TrimSpace(c.Codegens[i].Format))
	}
}

// Root is the folder containing the config file.
func (c *Config) Root() string {
	return filepath.Dir(c.FilePath)
}

func (c *Config) DataDir() string {
	return filepath.Join(c.Root(), DataDirName)
}

func (c *Config) StatePath() string {
	return filepath.Join(c.Root(), StateFileName)
}

// ResolvePath makes a config-relative path absolute.
func (c *Config) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Root(), filepath.FromSlash(p))
}

// Target returns the target with the given key.
func (c *Config) Target(key string) (*TargetConfig, error) {
	for i := range c.Targets {
		if c.Targets[i].Key == key {
			return &c.Targets[i], nil
		}
	}
	return nil, fmt.Errorf("%w '%s'", ErrUnknownTarget, key)
}

// Globs returns the input globs in declaration order.
func (c *Config) Globs() []string {
	globs := make([]string, 0, len(c.Inputs))
	for _, in := range c.Inputs {
		globs = append(globs, in.Glob)
	}
	return globs
}
