package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
)

// Constructor builds a streamer from a validated descriptor.
type Constructor func(d Descriptor, caps Capabilities) (Streamer, error)

// Factory resolves descriptors to transport variants.
type Factory struct {
	constructors map[Kind]Constructor
	mu           sync.RWMutex
}

// NewFactory creates a factory with the built-in transports registered.
// Muse headsets have no built-in transport; register one with Register.
func NewFactory() *Factory {
	f := &Factory{
		constructors: make(map[Kind]Constructor),
	}

	f.Register(KindSynthetic, func(d Descriptor, caps Capabilities) (Streamer, error) {
		cfg := SyntheticConfig{}
		if d.Synthetic != nil {
			cfg = *d.Synthetic
		}
		cfg.SampleRate = d.SampleRate
		cfg.Channels = d.Channels
		cfg.NonDataChannels = d.NonDataChannels
		return NewSyntheticDevice(d.Name, cfg, WithCapabilities(caps)), nil
	})
	f.Register(KindWebSocket, func(d Descriptor, caps Capabilities) (Streamer, error) {
		return NewWebSocketDevice(d.Info(), d.URL, WithCapabilities(caps)), nil
	})

	return f
}

// Create validates d and builds its streamer.
func (f *Factory) Create(d Descriptor) (Streamer, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	caps, err := ParseCapabilities(d.Capabilities)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	ctor, exists := f.constructors[d.Kind]
	f.mu.RUnlock()

	if !exists {
		return nil, common.NewError("device", common.ErrCodeUnsupported,
			fmt.Sprintf("no transport registered for device kind: %s", d.Kind), nil)
	}

	return ctor(d, caps)
}

// Register installs a constructor for a kind, replacing any existing one.
func (f *Factory) Register(kind Kind, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.constructors[kind] = ctor
}

// SupportedKinds returns the registered kinds in sorted order.
func (f *Factory) SupportedKinds() []Kind {
	f.mu.RLock()
	defer f.mu.RUnlock()

	kinds := make([]Kind, 0, len(f.constructors))
	for k := range f.constructors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
