// Package env decides which execution environment the kit is running in.
package env

import "github.com/tinywideclouds/go-push-kit/pkg/push"

// Detector answers the native-vs-web question for every provider. It is
// side-effect free and safe to query before any provider exists: the absence
// of a host bridge is a normal negative result, not a failure.
type Detector struct {
	bridge push.NativeBridge
}

// NewDetector wraps the host-supplied bridge, which may be nil on the web.
func NewDetector(bridge push.NativeBridge) *Detector {
	return &Detector{bridge: bridge}
}

// IsNativePlatform reports whether a native shell is attached and reachable.
func (d *Detector) IsNativePlatform() bool {
	return d.bridge != nil && d.bridge.Available()
}

// Platform names the current platform: the bridge's OS name, or "web".
func (d *Detector) Platform() string {
	if d.IsNativePlatform() {
		return d.bridge.Platform()
	}
	return "web"
}

// Bridge returns the attached bridge, or nil on the web.
func (d *Detector) Bridge() push.NativeBridge {
	if d == nil {
		return nil
	}
	return d.bridge
}
