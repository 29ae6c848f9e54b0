// Package config holds the gateway's authoritative configuration: YAML base,
// environment overrides, and the mapping onto the kit's provider config.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-push-kit/pkg/push"
	kitconfig "github.com/tinywideclouds/go-push-kit/pushkit/config"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type FirebaseSettings struct {
	APIKey             string
	AuthDomain         string
	ProjectID          string
	StorageBucket      string
	MessagingSenderID  string
	AppID              string
	ServiceAccountFile string
	VapidPublicKey     string
	VapidPrivateKey    string
	VapidSubscriber    string
}

type OneSignalSettings struct {
	AppID      string
	RestAPIKey string
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int

	// ProviderKind selects the push back end: "firebase" or "onesignal".
	ProviderKind string

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Firebase   FirebaseSettings
	OneSignal  OneSignalSettings

	TopicID              string
	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// ProviderConfig maps the gateway settings onto the kit's provider config,
// loading the service account file when one is configured.
func (c *Config) ProviderConfig() (*kitconfig.Config, error) {
	switch push.Kind(c.ProviderKind) {
	case push.KindOneSignal:
		return &kitconfig.Config{
			Kind: push.KindOneSignal,
			OneSignal: &kitconfig.OneSignalConfig{
				AppID:      c.OneSignal.AppID,
				RestAPIKey: c.OneSignal.RestAPIKey,
			},
		}, nil
	case push.KindFirebase:
		fb := &kitconfig.FirebaseConfig{
			APIKey:            c.Firebase.APIKey,
			AuthDomain:        c.Firebase.AuthDomain,
			ProjectID:         c.Firebase.ProjectID,
			StorageBucket:     c.Firebase.StorageBucket,
			MessagingSenderID: c.Firebase.MessagingSenderID,
			AppID:             c.Firebase.AppID,
			VapidKey:          c.Firebase.VapidPublicKey,
			VapidPrivateKey:   c.Firebase.VapidPrivateKey,
			VapidSubscriber:   c.Firebase.VapidSubscriber,
		}
		if c.Firebase.ServiceAccountFile != "" {
			raw, err := os.ReadFile(c.Firebase.ServiceAccountFile)
			if err != nil {
				return nil, fmt.Errorf("read service account file: %w", err)
			}
			fb.ServiceAccountJSON = raw
		}
		return &kitconfig.Config{Kind: push.KindFirebase, Firebase: fb}, nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", c.ProviderKind)
	}
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// Provider Overrides
	if val := os.Getenv("PUSH_PROVIDER"); val != "" {
		logger.Debug("Overriding config value", "key", "PUSH_PROVIDER", "source", "env")
		cfg.ProviderKind = val
	}
	if val := os.Getenv("FIREBASE_SERVICE_ACCOUNT_FILE"); val != "" {
		logger.Debug("Overriding config value", "key", "FIREBASE_SERVICE_ACCOUNT_FILE", "source", "env")
		cfg.Firebase.ServiceAccountFile = val
	}
	if val := os.Getenv("VAPID_PUBLIC_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_PUBLIC_KEY", "source", "env")
		cfg.Firebase.VapidPublicKey = val
	}
	if val := os.Getenv("VAPID_PRIVATE_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_PRIVATE_KEY", "source", "env")
		cfg.Firebase.VapidPrivateKey = val
	}
	if val := os.Getenv("VAPID_SUB_EMAIL"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_SUB_EMAIL", "source", "env")
		cfg.Firebase.VapidSubscriber = val
	}
	if val := os.Getenv("ONESIGNAL_APP_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "ONESIGNAL_APP_ID", "source", "env")
		cfg.OneSignal.AppID = val
	}
	if val := os.Getenv("ONESIGNAL_REST_API_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "ONESIGNAL_REST_API_KEY", "source", "env")
		cfg.OneSignal.RestAPIKey = val
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Final Validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required (set via YAML or SUBSCRIPTION_ID env var)")
	}
	if cfg.ProviderKind == "" {
		cfg.ProviderKind = string(push.KindFirebase)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
