package config

import (
	"fmt"
	"time"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

type Config struct {
	Env                        string
	DefaultLanguage            string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	StreamingTokenURL          string
	StreamingWSURL             string
	AudioWAVPath               string
	RiskThreshold              int
	RiskMinChars               int
	NetworkTimeoutSec          int
	AlertThreshold             int
	StoreDriver                string
	DatabaseURL                string
	SQLitePath                 string
	AlertWebhookURL            string
	AlertDiscordToken          string
	AlertDiscordChannelID      string
	AlertNATSURL               string
	AlertNATSSubject           string
	MetricsAddr                string
	ProvidersFile              string
	Providers                  ProviderConfig
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if err := c.Providers.Validate(); err != nil {
		return err
	}
	if c.Providers.ASR.ID == ASRProviderNative && c.GoogleCloudProjectID == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID is required when ASR_PROVIDER=%s", ASRProviderNative)
	}
	if c.RiskThreshold < 0 || c.RiskThreshold > 100 {
		return fmt.Errorf("RISK_THRESHOLD must be within 0..100, got %d", c.RiskThreshold)
	}
	if c.AlertThreshold < 0 || c.AlertThreshold > 100 {
		return fmt.Errorf("ALERT_THRESHOLD must be within 0..100, got %d", c.AlertThreshold)
	}
	if c.RiskMinChars < 0 {
		return fmt.Errorf("RISK_MIN_CHARS must not be negative, got %d", c.RiskMinChars)
	}
	if c.NetworkTimeoutSec <= 0 {
		return fmt.Errorf("NETWORK_TIMEOUT_SEC must be positive, got %d", c.NetworkTimeoutSec)
	}
	switch c.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER=%s", StoreDriverSQLite)
		}
	default:
		return fmt.Errorf("STORE_DRIVER is invalid: %q", c.StoreDriver)
	}
	if (c.AlertDiscordToken == "") != (c.AlertDiscordChannelID == "") {
		return fmt.Errorf("ALERT_DISCORD_TOKEN and ALERT_DISCORD_CHANNEL_ID must be set together")
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "ASR_LANGUAGE", value: c.DefaultLanguage},
		{name: "CLASSIFIER_BASE_URL", value: c.Providers.ClassifierBaseURL},
		{name: "STREAMING_TOKEN_URL", value: c.StreamingTokenURL},
		{name: "STREAMING_WS_URL", value: c.StreamingWSURL},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) NetworkTimeout() time.Duration {
	return time.Duration(c.NetworkTimeoutSec) * time.Second
}
