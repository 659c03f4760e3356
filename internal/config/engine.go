package config

import (
	"time"

	"github.com/spf13/viper"
)

// EngineConfig tunes the pending-action engines
type EngineConfig struct {
	ChangeRequestTTL time.Duration
	TANLength        int
	LockTTL          time.Duration
	WatchdogTimeout  time.Duration
	WebhookEndpoint  string
	WebhookSecret    string
}

func LoadEngineConfig() *EngineConfig {
	viper.SetDefault("engine.change_request_ttl", 5*time.Minute)
	viper.SetDefault("engine.tan_length", 6)
	viper.SetDefault("engine.lock_ttl", 5*time.Second)
	viper.SetDefault("engine.watchdog_timeout", 60*time.Second)
	viper.SetDefault("engine.webhook_endpoint", "http://localhost:9000/webhooks")
	viper.SetDefault("engine.webhook_secret", "sandbox-webhook-secret")

	return &EngineConfig{
		ChangeRequestTTL: viper.GetDuration("engine.change_request_ttl"),
		TANLength:        viper.GetInt("engine.tan_length"),
		LockTTL:          viper.GetDuration("engine.lock_ttl"),
		WatchdogTimeout:  viper.GetDuration("engine.watchdog_timeout"),
		WebhookEndpoint:  viper.GetString("engine.webhook_endpoint"),
		WebhookSecret:    viper.GetString("engine.webhook_secret"),
	}
}
