package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/cropkit/pkg/crop"
	"github.com/menta2k/cropkit/pkg/geometry"
)

const (
	DefaultConfigDir  = "cropkit"
	DefaultConfigFile = "config.yaml"
)

// Config holds the application configuration
type Config struct {
	Editor EditorConfig `yaml:"editor" json:"editor"`
	Output OutputConfig `yaml:"output" json:"output"`
	Vision VisionConfig `yaml:"vision" json:"vision"`
	Batch  BatchConfig  `yaml:"batch" json:"batch"`
}

// EditorConfig holds the crop gesture settings
type EditorConfig struct {
	HandleThreshold float64 `yaml:"handle_threshold" json:"handle_threshold"`
	OuterThreshold  float64 `yaml:"outer_threshold" json:"outer_threshold"`
	MinimumSize     float64 `yaml:"minimum_size" json:"minimum_size"`
	// AspectRatio names a preset (square, portrait, ...) or gives
	// height/width as a number; empty means unconstrained.
	AspectRatio    string  `yaml:"aspect_ratio,omitempty" json:"aspect_ratio,omitempty"`
	Shape          string  `yaml:"shape" json:"shape"`
	ViewportWidth  float64 `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight float64 `yaml:"viewport_height" json:"viewport_height"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format    string `yaml:"format" json:"format"`
	Quality   int    `yaml:"quality" json:"quality"`
	Lossless  bool   `yaml:"lossless" json:"lossless"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	Suffix    string `yaml:"suffix" json:"suffix"`
	Sidecar   bool   `yaml:"sidecar" json:"sidecar"`
}

// VisionConfig holds the subject detection backend settings
type VisionConfig struct {
	Backend string        `yaml:"backend" json:"backend"`
	URL     string        `yaml:"url" json:"url"`
	Model   string        `yaml:"model" json:"model"`
	MaxDim  int           `yaml:"max_dim" json:"max_dim"`
	Padding float64       `yaml:"padding" json:"padding"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// BatchConfig holds settings for applying edits to many images
type BatchConfig struct {
	Workers int `yaml:"workers" json:"workers"`
}

// Vision backends
const (
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	// BackendSaliency runs offline and needs no URL or model.
	BackendSaliency = "saliency"
)

// Default returns a configuration with default values
func Default() *Config {
	cc := crop.DefaultConfig()
	return &Config{
		Editor: EditorConfig{
			HandleThreshold: cc.HandleThreshold,
			OuterThreshold:  cc.OuterThreshold,
			MinimumSize:     cc.MinimumSize,
			Shape:           crop.ShapeFree.String(),
		},
		Output: OutputConfig{
			Format:    "jpg",
			Quality:   90,
			OutputDir: "./output",
			Suffix:    "_edited",
			Sidecar:   true,
		},
		Vision: VisionConfig{
			Backend: BackendOllama,
			URL:     "http://localhost:11434",
			Model:   "minicpm-v4.5",
			MaxDim:  1024,
			Padding: 0.1,
			Timeout: 5 * time.Minute,
		},
		Batch: BatchConfig{
			Workers: 4,
		},
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./" + DefaultConfigFile
	}
	return filepath.Join(home, ".config", DefaultConfigDir, DefaultConfigFile)
}

// LoadFromFile loads configuration from a YAML or JSON file, chosen by
// extension. A missing file yields the defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isJSON(filename) {
		err = json.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(config)
	return config, nil
}

// SaveToFile saves configuration to a YAML or JSON file, chosen by extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isJSON(filename) {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Init writes a default config to filename unless one already exists
func Init(filename string) error {
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("config file already exists: %s", filename)
	}
	return Default().SaveToFile(filename)
}

func isJSON(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".json")
}

// applyDefaults fills in missing values with defaults
func applyDefaults(c *Config) {
	d := Default()
	if c.Editor.Shape == "" {
		c.Editor.Shape = d.Editor.Shape
	}
	if c.Output.Format == "" {
		c.Output.Format = d.Output.Format
	}
	if c.Output.Quality == 0 {
		c.Output.Quality = d.Output.Quality
	}
	if c.Vision.Timeout == 0 {
		c.Vision.Timeout = d.Vision.Timeout
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = d.Batch.Workers
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := c.CropConfig(); err != nil {
		return err
	}

	if c.Editor.ViewportWidth < 0 || c.Editor.ViewportHeight < 0 {
		return fmt.Errorf("editor viewport must not be negative")
	}

	switch c.Output.Format {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("output.format must be one of jpg, png, webp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	switch c.Vision.Backend {
	case BackendOllama, BackendLlamaCpp, BackendSaliency:
	default:
		return fmt.Errorf("vision.backend must be %s, %s or %s", BackendOllama, BackendLlamaCpp, BackendSaliency)
	}

	if c.Vision.Padding < 0 || c.Vision.Padding > 1 {
		return fmt.Errorf("vision.padding must be between 0 and 1")
	}

	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be positive")
	}
	return nil
}

// CropConfig converts the editor section into the crop engine's config
func (c *Config) CropConfig() (crop.Config, error) {
	shape, err := crop.ParseShape(c.Editor.Shape)
	if err != nil {
		return crop.Config{}, fmt.Errorf("editor.shape: %w", err)
	}

	maxAspect, err := ParseAspectRatio(c.Editor.AspectRatio)
	if err != nil {
		return crop.Config{}, fmt.Errorf("editor.aspect_ratio: %w", err)
	}

	cc := crop.Config{
		HandleThreshold: c.Editor.HandleThreshold,
		OuterThreshold:  c.Editor.OuterThreshold,
		MinimumSize:     c.Editor.MinimumSize,
		MaxAspectRatio:  maxAspect,
		Shape:           shape,
	}
	if err := cc.Validate(); err != nil {
		return crop.Config{}, fmt.Errorf("editor: %w", err)
	}
	return cc, nil
}

// Viewport returns the editor viewport. When unset one editor unit is one
// source pixel.
func (c *Config) Viewport() geometry.Size {
	return geometry.Size{Width: c.Editor.ViewportWidth, Height: c.Editor.ViewportHeight}
}

// ParseAspectRatio accepts a preset name, a "W:H" ratio or a plain
// height/width number. Empty means no constraint.
func ParseAspectRatio(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	if a, ok := crop.LookupAspectRatio(v); ok {
		return a.HeightOverWidth(), nil
	}
	if w, h, ok := strings.Cut(v, ":"); ok {
		fw, err1 := strconv.ParseFloat(w, 64)
		fh, err2 := strconv.ParseFloat(h, 64)
		if err1 != nil || err2 != nil || fw <= 0 || fh <= 0 {
			return 0, fmt.Errorf("invalid ratio %q", v)
		}
		return fh / fw, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("unknown aspect ratio %q", v)
	}
	return f, nil
}

// Set updates a config value by its dotted key
func (c *Config) Set(key, value string) error {
	var err error
	switch key {
	case "editor.handle_threshold":
		c.Editor.HandleThreshold, err = strconv.ParseFloat(value, 64)
	case "editor.outer_threshold":
		c.Editor.OuterThreshold, err = strconv.ParseFloat(value, 64)
	case "editor.minimum_size":
		c.Editor.MinimumSize, err = strconv.ParseFloat(value, 64)
	case "editor.aspect_ratio":
		c.Editor.AspectRatio = value
	case "editor.shape":
		c.Editor.Shape = value
	case "output.format":
		c.Output.Format = value
	case "output.quality":
		c.Output.Quality, err = strconv.Atoi(value)
	case "output.output_dir":
		c.Output.OutputDir = value
	case "output.sidecar":
		c.Output.Sidecar, err = strconv.ParseBool(value)
	case "vision.backend":
		c.Vision.Backend = value
	case "vision.url":
		c.Vision.URL = value
	case "vision.model":
		c.Vision.Model = value
	case "vision.padding":
		c.Vision.Padding, err = strconv.ParseFloat(value, 64)
	case "batch.workers":
		c.Batch.Workers, err = strconv.Atoi(value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return c.Validate()
}
