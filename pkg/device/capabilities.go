package device

import (
	"fmt"
	"strings"
)

// Capabilities is the set of things a device variant can do, fixed when the
// device is constructed.
type Capabilities uint8

const (
	CapStream Capabilities = 1 << iota
	CapRecord

	CapAll = CapStream | CapRecord
)

var capabilityNames = []struct {
	cap  Capabilities
	name string
}{
	{CapStream, "stream"},
	{CapRecord, "record"},
}

// Has reports whether every capability in c is present.
func (s Capabilities) Has(c Capabilities) bool {
	return s&c == c
}

// Names returns the capability names in canonical order.
func (s Capabilities) Names() []string {
	var names []string
	for _, cn := range capabilityNames {
		if s.Has(cn.cap) {
			names = append(names, cn.name)
		}
	}
	return names
}

func (s Capabilities) String() string {
	return "{" + strings.Join(s.Names(), ",") + "}"
}

// ParseCapabilities converts names into a capability set. An empty list
// means every capability. Recording requires streaming.
func ParseCapabilities(names []string) (Capabilities, error) {
	if len(names) == 0 {
		return CapAll, nil
	}

	var caps Capabilities
	for _, n := range names {
		found := false
		for _, cn := range capabilityNames {
			if strings.EqualFold(strings.TrimSpace(n), cn.name) {
				caps |= cn.cap
				found = true
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown capability %q", n)
		}
	}

	if caps.Has(CapRecord) && !caps.Has(CapStream) {
		return 0, fmt.Errorf("capability record requires stream")
	}
	return caps, nil
}
