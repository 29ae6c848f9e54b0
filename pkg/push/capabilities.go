package push

// Capabilities is a fixed-shape record describing what the active provider
// supports on the active platform. It is computed from (provider kind,
// environment, configured credentials) on each query, never persisted.
type Capabilities struct {
	// Topics reports whether topic (or tag) subscription is available.
	Topics bool `json:"topics"`
	// Scheduling reports whether device-local scheduled notifications are
	// available; this requires a native bridge.
	Scheduling bool `json:"scheduling"`
	// RichMedia reports whether image attachments are delivered.
	RichMedia bool `json:"rich_media"`
	// Badges reports whether app badge counts are supported.
	Badges bool `json:"badges"`
	// ForegroundMessages reports whether messages are surfaced to listeners
	// while the host application is in the foreground.
	ForegroundMessages bool `json:"foreground_messages"`
	// DirectSend reports whether SendNotification is usable, i.e. a
	// server-side credential was configured.
	DirectSend bool `json:"direct_send"`
}
