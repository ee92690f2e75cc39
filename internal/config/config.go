package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Link     LinkConfig     `yaml:"link" json:"link"`
	Mask     MaskConfig     `yaml:"mask" json:"mask"`
	Render   RenderConfig   `yaml:"render" json:"render"`
	Prelabel PrelabelConfig `yaml:"prelabel" json:"prelabel"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	Store    StoreConfig    `yaml:"store" json:"store"`
}

// LinkConfig holds configuration for deep links
type LinkConfig struct {
	Host string `yaml:"host" json:"host"`
}

// MaskConfig holds configuration for mask rasters
type MaskConfig struct {
	Threshold int  `yaml:"threshold" json:"threshold"`
	Quality   int  `yaml:"quality" json:"quality"`
	Lossless  bool `yaml:"lossless" json:"lossless"`
}

// RenderConfig holds configuration for review overlays
type RenderConfig struct {
	Stroke      int `yaml:"stroke" json:"stroke"`
	FillOpacity int `yaml:"fill_opacity" json:"fill_opacity"`
}

// PrelabelConfig holds configuration for vision model pre-annotation
type PrelabelConfig struct {
	Backend       string  `yaml:"backend" json:"backend"`
	URL           string  `yaml:"url" json:"url"`
	Model         string  `yaml:"model" json:"model"`
	Prompt        string  `yaml:"prompt" json:"prompt"`
	Workers       int     `yaml:"workers" json:"workers"`
	MaxDim        int     `yaml:"max_dim" json:"max_dim"`
	Format        string  `yaml:"format" json:"format"`
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`
	ProjectLabels bool    `yaml:"project_labels" json:"project_labels"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	Suffix    string `yaml:"suffix" json:"suffix"`
	Format    string `yaml:"format" json:"format"`
}

// StoreConfig holds configuration for dataset storage. Credentials are
// usually supplied through the environment instead.
type StoreConfig struct {
	Backend   string `yaml:"backend" json:"backend"`
	Root      string `yaml:"root" json:"root"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"access_key,omitempty" json:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty" json:"-"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Link: LinkConfig{
			Host: "app.cvat.ai",
		},
		Mask: MaskConfig{
			Threshold: 128,
			Quality:   90,
			Lossless:  true,
		},
		Render: RenderConfig{
			Stroke:      2,
			FillOpacity: 96,
		},
		Prelabel: PrelabelConfig{
			Backend:       "llamacpp",
			Model:         "openbmb/minicpm-v4.5",
			Workers:       2,
			MaxDim:        1536,
			Format:        "jpg",
			MinConfidence: 0.25,
			ProjectLabels: true,
		},
		Output: OutputConfig{
			OutputDir: "./output",
			Suffix:    "_overlay",
			Format:    "png",
		},
		Store: StoreConfig{
			Backend: "local",
			Root:    "./datasets",
			Bucket:  "cvat-datasets",
		},
	}
}

// FromYAML parses configuration on top of the defaults. JSON is valid YAML
// and is accepted as well.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML or JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults when filename does not exist
func LoadOptional(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFromFile(filename)
}

// SaveToFile saves configuration as YAML
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Link.Host == "" {
		return fmt.Errorf("link.host is required")
	}

	if c.Mask.Threshold < 1 || c.Mask.Threshold > 255 {
		return fmt.Errorf("mask.threshold must be between 1 and 255")
	}

	if c.Mask.Quality < 1 || c.Mask.Quality > 100 {
		return fmt.Errorf("mask.quality must be between 1 and 100")
	}

	if c.Render.Stroke < 1 {
		return fmt.Errorf("render.stroke must be positive")
	}

	if c.Render.FillOpacity < 0 || c.Render.FillOpacity > 255 {
		return fmt.Errorf("render.fill_opacity must be between 0 and 255")
	}

	switch c.Prelabel.Backend {
	case "ollama", "llamacpp":
	default:
		return fmt.Errorf("prelabel.backend must be ollama or llamacpp, got %q", c.Prelabel.Backend)
	}

	if c.Prelabel.Workers < 1 {
		return fmt.Errorf("prelabel.workers must be positive")
	}

	if c.Prelabel.MaxDim < 0 {
		return fmt.Errorf("prelabel.max_dim cannot be negative")
	}

	switch c.Prelabel.Format {
	case "jpg", "png":
	default:
		return fmt.Errorf("prelabel.format must be jpg or png, got %q", c.Prelabel.Format)
	}

	if c.Prelabel.MinConfidence < 0 || c.Prelabel.MinConfidence > 1 {
		return fmt.Errorf("prelabel.min_confidence must be between 0 and 1")
	}

	switch c.Store.Backend {
	case "local":
		if c.Store.Root == "" {
			return fmt.Errorf("store.root is required for the local backend")
		}
	case "minio":
		if c.Store.Endpoint == "" {
			return fmt.Errorf("store.endpoint is required for the minio backend")
		}
	default:
		return fmt.Errorf("store.backend must be local or minio, got %q", c.Store.Backend)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./cvatkit.yaml"
	}
	return filepath.Join(home, ".config", "cvatkit", "config.yaml")
}
