// Package config defines the provider configuration variants and the
// fail-fast validator that normalizes them before any provider exists.
package config

import (
	"errors"

	firebase "firebase.google.com/go/v4"

	"github.com/tinywideclouds/go-push-kit/pkg/onesignal"
	"github.com/tinywideclouds/go-push-kit/pkg/push"
)

// ErrAmbiguousVariant reports a config carrying both a credential set and an
// external instance reference, or sections for more than one provider kind.
// Exactly one variant must be present.
var ErrAmbiguousVariant = errors.New("config: exactly one of credentials or instance reference must be set")

// APNSConfig carries the credentials for direct APNs delivery, used for
// native iOS sends when present. The key content is the raw .p8 file.
type APNSConfig struct {
	KeyID        string
	TeamID       string
	BundleID     string
	P8KeyContent string
}

// FirebaseConfig configures the Firebase provider. Either the six web credential fields
// are all present, or App references an externally constructed Firebase app
// and no credential fields are required.
type FirebaseConfig struct {
	APIKey            string
	AuthDomain        string
	ProjectID         string
	StorageBucket     string
	MessagingSenderID string
	AppID             string

	// VapidKey is the web push public key; optional in either variant.
	VapidKey string
	// VapidPrivateKey plus VapidSubscriber enable direct web push sends.
	// These are server-side credentials.
	VapidPrivateKey string
	VapidSubscriber string

	// ServiceAccountJSON is the server credential enabling direct sends
	// through the messaging API.
	ServiceAccountJSON []byte

	// APNS enables the direct APNs leg for native iOS sends.
	APNS *APNSConfig

	// App is the external instance reference variant.
	App *firebase.App
}

func (c *FirebaseConfig) hasCredentialFields() bool {
	return c.APIKey != "" || c.AuthDomain != "" || c.ProjectID != "" ||
		c.StorageBucket != "" || c.MessagingSenderID != "" || c.AppID != ""
}

// OneSignalConfig configures the OneSignal provider. Either AppID is present, or Client
// references an externally constructed REST client.
type OneSignalConfig struct {
	AppID       string
	RestAPIKey  string
	SafariWebID string

	// Client is the external instance reference variant.
	Client *onesignal.Client
}

// UIConfig is passed through to the presentation layer untouched; the kit
// does not render anything itself.
type UIConfig struct {
	Theme string
	Sound string
}

// Config is the tagged union handed to Init. Kind selects the provider and
// exactly one matching section must be populated.
type Config struct {
	Kind      push.Kind
	Firebase  *FirebaseConfig
	OneSignal *OneSignalConfig
	UI        *UIConfig
}

// Validate checks the config for the declared kind. Every missing required
// field is reported in one *push.ConfigurationError, so callers get complete
// diagnostics in a single pass. It performs no I/O.
func (c *Config) Validate() error {
	switch c.Kind {
	case push.KindFirebase:
		if c.OneSignal != nil {
			return ErrAmbiguousVariant
		}
		if c.Firebase == nil {
			return &push.ConfigurationError{Kind: push.KindFirebase, MissingFields: []string{"firebase"}}
		}
		return c.Firebase.Validate()
	case push.KindOneSignal:
		if c.Firebase != nil {
			return ErrAmbiguousVariant
		}
		if c.OneSignal == nil {
			return &push.ConfigurationError{Kind: push.KindOneSignal, MissingFields: []string{"onesignal"}}
		}
		return c.OneSignal.Validate()
	default:
		return &push.ConfigurationError{Kind: c.Kind, MissingFields: []string{"kind"}}
	}
}

// Validate checks the credential-or-reference invariant for the Firebase provider.
func (c *FirebaseConfig) Validate() error {
	if c.App != nil {
		if c.hasCredentialFields() {
			return ErrAmbiguousVariant
		}
		// Instance reference variant: only the reference is required.
		return nil
	}

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"apiKey", c.APIKey},
		{"authDomain", c.AuthDomain},
		{"projectId", c.ProjectID},
		{"storageBucket", c.StorageBucket},
		{"messagingSenderId", c.MessagingSenderID},
		{"appId", c.AppID},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &push.ConfigurationError{Kind: push.KindFirebase, MissingFields: missing}
	}
	return nil
}

// Validate checks the credential-or-reference invariant for the OneSignal provider.
func (c *OneSignalConfig) Validate() error {
	if c.Client != nil {
		if c.AppID != "" || c.RestAPIKey != "" {
			return ErrAmbiguousVariant
		}
		return nil
	}
	if c.AppID == "" {
		return &push.ConfigurationError{Kind: push.KindOneSignal, MissingFields: []string{"appId"}}
	}
	return nil
}
