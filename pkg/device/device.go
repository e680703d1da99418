// Package device models EEG headsets as streaming capabilities. A device
// delivers batches of samples to a callback on its own goroutine; concrete
// transports are variants behind the Streamer interface.
package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
)

// Kind identifies a device transport variant.
type Kind string

const (
	KindSynthetic Kind = "synthetic"
	KindWebSocket Kind = "websocket"
	KindMuse      Kind = "muse"
)

// SampleCallback receives a batch of samples (channel-major) and one
// timestamp per sample column. It runs on the transport's delivery
// goroutine and must not block or perform I/O.
type SampleCallback func(samples common.Samples, timestamps []float64)

// Info describes a device.
type Info struct {
	Name            string   `json:"name" yaml:"name"`
	Kind            Kind     `json:"kind" yaml:"kind"`
	SampleRate      float64  `json:"sample_rate" yaml:"sample_rate"`
	Channels        []string `json:"channels" yaml:"channels"`
	NonDataChannels []string `json:"non_data_channels,omitempty" yaml:"non_data_channels,omitempty"`
}

// FolderLabel returns the recording folder name for a session started at t.
func (i Info) FolderLabel(t time.Time) string {
	return TimeString(t) + "_" + SimplifyName(i.Name)
}

// String implements fmt.Stringer.
func (i Info) String() string {
	return fmt.Sprintf("Device: %s (%s), Channels: %d, Sampling Rate (Hz): %g", i.Name, i.Kind, len(i.Channels), i.SampleRate)
}

// Device is anything with an identity and a capability set.
type Device interface {
	Info() Info
	Capabilities() Capabilities
}

// Streamer is a device that can push samples.
//
// Stop must guarantee that no callback is running or will run once it
// returns. Stop and Disconnect are idempotent.
type Streamer interface {
	Device
	Connect(ctx context.Context) error
	Start(cb SampleCallback) error
	Stop() error
	Disconnect() error
}

// TimeString formats t the way recording folders and metadata name it.
func TimeString(t time.Time) string {
	return t.Format("2006_01_02_15_04_05")
}

var lower = cases.Lower(language.Und)

// SimplifyName lower-cases a device name and replaces spaces with
// underscores.
func SimplifyName(name string) string {
	return strings.ReplaceAll(lower.String(strings.TrimSpace(name)), " ", "_")
}
