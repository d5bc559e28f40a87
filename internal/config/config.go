// Package config loads the bandmask configuration file.
//
// The file is YAML unless its name ends in .json. Every field is optional;
// pointer fields distinguish "not set" from zero so that command-line flags
// and built-in defaults can fill the gaps.
package config

import (
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/bandmask/internal/attention"
)

// Attention mirrors attention.Config.
type Attention struct {
	SequenceCapacity *int `yaml:"sequence_capacity" json:"sequence_capacity"`
	Window           *int `yaml:"window" json:"window"`
	NumHeads         *int `yaml:"num_heads" json:"num_heads"`
	HeadDim          *int `yaml:"head_dim" json:"head_dim"`
	Workers          *int `yaml:"workers" json:"workers"`
}

// File is the on-disk configuration.
type File struct {
	Attention Attention `yaml:"attention" json:"attention"`

	LogLevel      string `yaml:"log_level" json:"log_level"`
	LogFormat     string `yaml:"log_format" json:"log_format"`
	ServerAddress string `yaml:"server_address" json:"server_address"`
	MaskCacheDir  string `yaml:"mask_cache_dir" json:"mask_cache_dir"`
}

// Defaults used when neither the file nor a flag sets a value.
const (
	DefaultSequenceCapacity = 1024
	DefaultWindow           = 256
	DefaultServerAddress    = "127.0.0.1:8080"
)

// DefaultPath returns ~/.config/bandmask/config.yaml, or "" when the user
// config directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "bandmask", "config.yaml")
}

// Load reads path. A missing file yields a zero File and no error when
// optional is true.
func Load(path string, optional bool) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return File{}, nil
		}
		return File{}, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return File{}, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML, or JSON when isJSON is set, and validates the result.
func Parse(data []byte, isJSON bool) (File, error) {
	var cfg File
	var err error
	if isJSON {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return File{}, errors.WithStack(err)
	}
	if err := cfg.Validate(); err != nil {
		return File{}, err
	}
	return cfg, nil
}

// Validate checks the values a file sets. Window validity is left to the
// mask builder, which owns that rule.
func (f File) Validate() error {
	a := f.Attention
	if a.SequenceCapacity != nil && *a.SequenceCapacity < 1 {
		return errors.Errorf("attention.sequence_capacity must be at least 1, got %d", *a.SequenceCapacity)
	}
	if a.NumHeads != nil && *a.NumHeads < 0 {
		return errors.Errorf("attention.num_heads must not be negative, got %d", *a.NumHeads)
	}
	if a.HeadDim != nil && *a.HeadDim < 0 {
		return errors.Errorf("attention.head_dim must not be negative, got %d", *a.HeadDim)
	}
	switch strings.ToLower(f.LogFormat) {
	case "", "pretty", "text", "json":
	default:
		return errors.Errorf("log_format must be pretty, text or json, got %q", f.LogFormat)
	}
	return nil
}

// AttentionConfig resolves the attention section against the defaults.
func (f File) AttentionConfig() attention.Config {
	cfg := attention.Config{
		SequenceCapacity: DefaultSequenceCapacity,
		Window:           DefaultWindow,
	}
	a := f.Attention
	if a.SequenceCapacity != nil {
		cfg.SequenceCapacity = *a.SequenceCapacity
	}
	if a.Window != nil {
		cfg.Window = *a.Window
	}
	if a.NumHeads != nil {
		cfg.NumHeads = *a.NumHeads
	}
	if a.HeadDim != nil {
		cfg.HeadDim = *a.HeadDim
	}
	if a.Workers != nil {
		cfg.Workers = *a.Workers
	}
	return cfg
}

// Address returns the server address, falling back to the default.
func (f File) Address() string {
	if f.ServerAddress != "" {
		return f.ServerAddress
	}
	return DefaultServerAddress
}
