package device

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
)

// DescriptorVersion is the only schema version this build reads and writes.
const DescriptorVersion = 1

// Descriptor is the persisted form of a device: an explicit, versioned
// schema tagged with the transport kind.
type Descriptor struct {
	Version         int              `yaml:"version"`
	Kind            Kind             `yaml:"kind"`
	Name            string           `yaml:"name"`
	SampleRate      float64          `yaml:"sample_rate"`
	Channels        []string         `yaml:"channels"`
	NonDataChannels []string         `yaml:"non_data_channels,omitempty"`
	Capabilities    []string         `yaml:"capabilities,omitempty"`
	MACAddress      string           `yaml:"mac_address,omitempty"`
	URL             string           `yaml:"url,omitempty"`
	Synthetic       *SyntheticConfig `yaml:"synthetic,omitempty"`
}

// MuseChannels are the EEG electrodes of a Muse headset followed by its
// auxiliary input.
var MuseChannels = []string{"TP9", "AF7", "AF8", "TP10", "Right AUX"}

// MuseDescriptor describes a Muse headset at the given MAC address.
func MuseDescriptor(name, mac string) Descriptor {
	return Descriptor{
		Version:         DescriptorVersion,
		Kind:            KindMuse,
		Name:            name,
		SampleRate:      256,
		Channels:        append([]string(nil), MuseChannels...),
		NonDataChannels: []string{"Right AUX"},
		MACAddress:      mac,
	}
}

// WebSocketDescriptor describes a headset streamed by a websocket bridge
// using the Muse channel layout.
func WebSocketDescriptor(name, url string) Descriptor {
	d := MuseDescriptor(name, "")
	d.Kind = KindWebSocket
	d.URL = url
	return d
}

// SyntheticDescriptor describes a generated signal source.
func SyntheticDescriptor(name string, cfg SyntheticConfig) Descriptor {
	cfg = cfg.withDefaults()
	return Descriptor{
		Version:         DescriptorVersion,
		Kind:            KindSynthetic,
		Name:            name,
		SampleRate:      cfg.SampleRate,
		Channels:        append([]string(nil), cfg.Channels...),
		NonDataChannels: append([]string(nil), cfg.NonDataChannels...),
		Synthetic:       &cfg,
	}
}

// Info returns the device info encoded by the descriptor.
func (d Descriptor) Info() Info {
	return Info{
		Name:            d.Name,
		Kind:            d.Kind,
		SampleRate:      d.SampleRate,
		Channels:        append([]string(nil), d.Channels...),
		NonDataChannels: append([]string(nil), d.NonDataChannels...),
	}
}

// Validate rejects unknown versions and kinds and missing kind fields.
func (d Descriptor) Validate() error {
	if d.Version != DescriptorVersion {
		return mismatch(fmt.Sprintf("unsupported descriptor version %d (expected %d)", d.Version, DescriptorVersion))
	}

	switch d.Kind {
	case KindSynthetic:
	case KindWebSocket:
		if d.URL == "" {
			return invalidDescriptor("websocket descriptor requires url")
		}
	case KindMuse:
		if d.MACAddress == "" {
			return invalidDescriptor("muse descriptor requires mac_address")
		}
	default:
		return mismatch(fmt.Sprintf("unknown device kind %q", d.Kind))
	}

	if d.Name == "" {
		return invalidDescriptor("device name is required")
	}
	if d.SampleRate <= 0 {
		return invalidDescriptor(fmt.Sprintf("sample rate must be positive, got %g", d.SampleRate))
	}
	if len(d.Channels) == 0 {
		return invalidDescriptor("at least one channel is required")
	}
	for _, nd := range d.NonDataChannels {
		if !contains(d.Channels, nd) {
			return invalidDescriptor(fmt.Sprintf("non-data channel %q is not a device channel", nd))
		}
	}
	if _, err := ParseCapabilities(d.Capabilities); err != nil {
		return invalidDescriptor(err.Error())
	}
	return nil
}

// SaveDescriptor writes d to dir as <simplified name>.yaml and returns the
// file path.
func SaveDescriptor(dir string, d Descriptor) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to encode descriptor: %w", err)
	}

	path := filepath.Join(dir, SimplifyName(d.Name)+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write descriptor: %w", err)
	}
	return path, nil
}

// LoadDescriptor reads and validates a descriptor file. Unknown fields,
// kinds and versions are rejected with ErrKindMismatch.
func LoadDescriptor(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to read descriptor: %w", err)
	}
	return ParseDescriptor(data)
}

// ParseDescriptor decodes and validates descriptor YAML.
func ParseDescriptor(data []byte) (Descriptor, error) {
	var d Descriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return Descriptor{}, common.NewError("device", common.ErrCodeKindMismatch,
			"deserialized data is not a device descriptor", err)
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func mismatch(msg string) error {
	return common.NewError("device", common.ErrCodeKindMismatch, msg, nil)
}

func invalidDescriptor(msg string) error {
	return common.NewError("device", common.ErrCodeInvalidArgument, msg, nil)
}
