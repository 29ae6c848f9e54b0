package push

import "strings"

// PermissionStatus is the canonical normalization target for the divergent
// permission vocabularies used by native shells and browsers.
type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
	PermissionPrompt  PermissionStatus = "prompt"
	PermissionUnknown PermissionStatus = "unknown"
)

// ParsePermission maps a raw SDK or bridge permission string onto the
// canonical vocabulary. Unrecognized values collapse to PermissionUnknown.
func ParsePermission(raw string) PermissionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "granted", "authorized", "provisional", "ephemeral":
		return PermissionGranted
	case "denied", "blocked":
		return PermissionDenied
	case "prompt", "default", "prompt-with-rationale", "notdetermined", "not_determined":
		return PermissionPrompt
	default:
		return PermissionUnknown
	}
}
