// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/user/framedecode/pkg/decoder"
	"github.com/user/framedecode/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Output sink kinds.
const (
	OutputFile    = "file"
	OutputNull    = "null"
	OutputChannel = "channel"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config represents the full configuration for framedecode.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	Codec     string `yaml:"codec"`
	QueueSize int    `yaml:"queue_size"`

	Backend  BackendConfig  `yaml:"backend"`
	Output   OutputConfig   `yaml:"output"`
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Summary is the path of the Markdown run summary. Empty disables it.
	Summary string `yaml:"summary"`
}

// BackendConfig selects and tunes the decoder backend.
type BackendConfig struct {
	// Variant is "software" or "hardware". It has no default.
	Variant         string `yaml:"variant"`
	HardwareDevice  string `yaml:"hardware_device"`
	CompleteFrames  bool   `yaml:"complete_frames"`
	LibraryLogLevel string `yaml:"library_log_level"`
}

// OutputConfig selects where wire messages go.
type OutputConfig struct {
	Kind   string `yaml:"kind"`
	Path   string `yaml:"path"`
	Buffer int    `yaml:"buffer"`
}

// UnmarshalYAML keeps the defaults of omitted keys but records an explicit
// null kind as empty, so Validate rejects it instead of the default
// output being used silently.
func (o *OutputConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain OutputConfig
	p := plain(*o)
	if err := value.Decode(&p); err != nil {
		return err
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "kind" && value.Content[i+1].ShortTag() == "!!null" {
			p.Kind = ""
		}
	}
	*o = OutputConfig(p)
	return nil
}

// SnapshotConfig controls PNG snapshots of decoded pictures.
type SnapshotConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Every   int    `yaml:"every"`
	Width   int    `yaml:"width"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		LogLevel:  "info",
		Codec:     string(ports.CodecH264),
		QueueSize: 8,
		Backend: BackendConfig{
			LibraryLogLevel: "error",
		},
		Output: OutputConfig{
			Kind:   OutputFile,
			Path:   "frames.bin",
			Buffer: 16,
		},
		Snapshot: SnapshotConfig{
			Dir:   "./snapshots",
			Every: 30,
			Width: 320,
		},
	}
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	if !ports.BackendVariant(c.Backend.Variant).Valid() {
		return fmt.Errorf("%w: backend.variant must be %q or %q, got %q",
			ErrInvalid, ports.VariantSoftware, ports.VariantHardware, c.Backend.Variant)
	}
	if _, ok := ports.ParseCodec(c.Codec); !ok {
		return fmt.Errorf("%w: unknown codec %q", ErrInvalid, c.Codec)
	}
	switch c.Output.Kind {
	case OutputFile:
		if c.Output.Path == "" {
			return fmt.Errorf("%w: output.path is required for file output", ErrInvalid)
		}
	case OutputNull, OutputChannel:
	case "":
		return fmt.Errorf(`%w: output.kind is empty (quote it as "null" to discard output)`, ErrInvalid)
	default:
		return fmt.Errorf("%w: unknown output kind %q", ErrInvalid, c.Output.Kind)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalid)
	}
	if c.Snapshot.Enabled && c.Snapshot.Every < 1 {
		return fmt.Errorf("%w: snapshot.every must be positive", ErrInvalid)
	}
	return nil
}

// DecoderOptions converts the backend settings for decoder.NewSession.
// Call Validate first.
func (c Config) DecoderOptions() decoder.Options {
	codec, _ := ports.ParseCodec(c.Codec)
	return decoder.Options{
		Codec:          codec,
		Variant:        ports.BackendVariant(c.Backend.Variant),
		HardwareDevice: c.Backend.HardwareDevice,
		CompleteFrames: c.Backend.CompleteFrames,
	}
}
