package config

import (
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type YamlFirebaseConfig struct {
	APIKey             string `yaml:"api_key"`
	AuthDomain         string `yaml:"auth_domain"`
	ProjectID          string `yaml:"project_id"`
	StorageBucket      string `yaml:"storage_bucket"`
	MessagingSenderID  string `yaml:"messaging_sender_id"`
	AppID              string `yaml:"app_id"`
	ServiceAccountFile string `yaml:"service_account_file"`
	VapidPublicKey     string `yaml:"vapid_public_key"`
	VapidPrivateKey    string `yaml:"vapid_private_key"`
	VapidSubscriber    string `yaml:"vapid_subscriber"`
}

type YamlOneSignalConfig struct {
	AppID      string `yaml:"app_id"`
	RestAPIKey string `yaml:"rest_api_key"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string              `yaml:"project_id"`
	ListenAddr             string              `yaml:"listen_addr"`
	TopicID                string              `yaml:"topic_id"`
	SubscriptionID         string              `yaml:"subscription_id"`
	SubscriptionDLQTopicID string              `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int                 `yaml:"num_pipeline_workers"`
	ProviderKind           string              `yaml:"provider_kind"`
	CorsConfig             YamlCorsConfig      `yaml:"cors"`
	RedisConfig            YamlRedisConfig     `yaml:"redis"`
	FirebaseConfig         YamlFirebaseConfig  `yaml:"firebase"`
	OneSignalConfig        YamlOneSignalConfig `yaml:"onesignal"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:      baseCfg.ProjectID,
		ListenAddr:     baseCfg.ListenAddr,
		TopicID:        baseCfg.TopicID,
		SubscriptionID: baseCfg.SubscriptionID,
		ProviderKind:   baseCfg.ProviderKind,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
		Firebase: FirebaseSettings{
			APIKey:             baseCfg.FirebaseConfig.APIKey,
			AuthDomain:         baseCfg.FirebaseConfig.AuthDomain,
			ProjectID:          baseCfg.FirebaseConfig.ProjectID,
			StorageBucket:      baseCfg.FirebaseConfig.StorageBucket,
			MessagingSenderID:  baseCfg.FirebaseConfig.MessagingSenderID,
			AppID:              baseCfg.FirebaseConfig.AppID,
			ServiceAccountFile: baseCfg.FirebaseConfig.ServiceAccountFile,
			VapidPublicKey:     baseCfg.FirebaseConfig.VapidPublicKey,
			VapidPrivateKey:    baseCfg.FirebaseConfig.VapidPrivateKey,
			VapidSubscriber:    baseCfg.FirebaseConfig.VapidSubscriber,
		},
		OneSignal: OneSignalSettings{
			AppID:      baseCfg.OneSignalConfig.AppID,
			RestAPIKey: baseCfg.OneSignalConfig.RestAPIKey,
		},
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
	)

	return cfg, nil
}
