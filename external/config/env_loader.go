package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/scamwatch/internal/config"
)

type envConfig struct {
	Env                        string `env:"ENV" envDefault:"production"`
	ASRProvider                string `env:"ASR_PROVIDER" envDefault:"native"`
	ASRLanguage                string `env:"ASR_LANGUAGE" envDefault:"zh-TW"`
	StreamingAPIKey            string `env:"STREAMING_API_KEY"`
	StreamingTokenURL          string `env:"STREAMING_TOKEN_URL" envDefault:"https://asr.api.yating.tw/v1/token"`
	StreamingWSURL             string `env:"STREAMING_WS_URL" envDefault:"wss://asr.api.yating.tw/ws/v1/"`
	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`
	AudioWAVPath               string `env:"AUDIO_WAV_PATH"`
	ClassifierBaseURL          string `env:"CLASSIFIER_BASE_URL" envDefault:"https://detect.443.gs/"`
	ProvidersFile              string `env:"PROVIDERS_FILE"`
	AdvisoryProvider           string `env:"ADVISORY_PROVIDER"`
	AdvisoryBaseURL            string `env:"ADVISORY_BASE_URL" envDefault:"https://openrouter.ai/api/v1/"`
	AdvisoryAPIKey             string `env:"ADVISORY_API_KEY"`
	AdvisoryModel              string `env:"ADVISORY_MODEL" envDefault:"deepseek/deepseek-chat"`
	AdvisoryUseAuthHeader      bool   `env:"ADVISORY_USE_AUTH_HEADER" envDefault:"true"`
	AdvisorySupportsReasoning  bool   `env:"ADVISORY_SUPPORTS_REASONING" envDefault:"false"`
	AdvisorySystemPrompt       string `env:"ADVISORY_SYSTEM_PROMPT"`
	AdvisoryRawJSONMode        bool   `env:"ADVISORY_RAW_JSON_MODE" envDefault:"false"`
	AdvisoryRawJSONTemplate    string `env:"ADVISORY_RAW_JSON_TEMPLATE"`
	RiskThreshold              int    `env:"RISK_THRESHOLD" envDefault:"50"`
	RiskMinChars               int    `env:"RISK_MIN_CHARS" envDefault:"6"`
	NetworkTimeoutSec          int    `env:"NETWORK_TIMEOUT_SEC" envDefault:"90"`
	AlertThreshold             int    `env:"ALERT_THRESHOLD" envDefault:"70"`
	StoreDriver                string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL                string `env:"DATABASE_URL"`
	SQLitePath                 string `env:"SQLITE_PATH" envDefault:"scamwatch.db"`
	AlertWebhookURL            string `env:"ALERT_WEBHOOK_URL"`
	AlertDiscordToken          string `env:"ALERT_DISCORD_TOKEN"`
	AlertDiscordChannelID      string `env:"ALERT_DISCORD_CHANNEL_ID"`
	AlertNATSURL               string `env:"ALERT_NATS_URL"`
	AlertNATSSubject           string `env:"ALERT_NATS_SUBJECT" envDefault:"scamwatch.alert"`
	MetricsAddr                string `env:"METRICS_ADDR"`
}

// WithAdvisoryDefaults fills the prompt and raw template a provider
// leaves empty.
func WithAdvisoryDefaults(a internalconfig.AdvisoryProvider) internalconfig.AdvisoryProvider {
	if a.SystemPrompt == "" {
		a.SystemPrompt = internalconfig.DefaultAdvisoryPrompt
	}
	if a.RawJSONMode && a.RawJSONTemplate == "" {
		a.RawJSONTemplate = internalconfig.DefaultRawTemplate
	}
	return a
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	advisory := internalconfig.AdvisoryProvider{
		Name:              "env",
		BaseURL:           raw.AdvisoryBaseURL,
		APIKey:            raw.AdvisoryAPIKey,
		Model:             raw.AdvisoryModel,
		UseAuthHeader:     raw.AdvisoryUseAuthHeader,
		SupportsReasoning: raw.AdvisorySupportsReasoning,
		SystemPrompt:      raw.AdvisorySystemPrompt,
		RawJSONMode:       raw.AdvisoryRawJSONMode,
		RawJSONTemplate:   raw.AdvisoryRawJSONTemplate,
	}
	if raw.ProvidersFile != "" {
		presets, err := LoadProviders(raw.ProvidersFile)
		if err != nil {
			return nil, err
		}
		selected, err := presets.Select(raw.AdvisoryProvider)
		if err != nil {
			return nil, err
		}
		if raw.AdvisoryAPIKey != "" {
			selected.APIKey = raw.AdvisoryAPIKey
		}
		advisory = selected
	}
	advisory = WithAdvisoryDefaults(advisory)

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		DefaultLanguage:            raw.ASRLanguage,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		StreamingTokenURL:          raw.StreamingTokenURL,
		StreamingWSURL:             raw.StreamingWSURL,
		AudioWAVPath:               raw.AudioWAVPath,
		RiskThreshold:              raw.RiskThreshold,
		RiskMinChars:               raw.RiskMinChars,
		NetworkTimeoutSec:          raw.NetworkTimeoutSec,
		AlertThreshold:             raw.AlertThreshold,
		StoreDriver:                raw.StoreDriver,
		DatabaseURL:                raw.DatabaseURL,
		SQLitePath:                 raw.SQLitePath,
		AlertWebhookURL:            raw.AlertWebhookURL,
		AlertDiscordToken:          raw.AlertDiscordToken,
		AlertDiscordChannelID:      raw.AlertDiscordChannelID,
		AlertNATSURL:               raw.AlertNATSURL,
		AlertNATSSubject:           raw.AlertNATSSubject,
		MetricsAddr:                raw.MetricsAddr,
		ProvidersFile:              raw.ProvidersFile,
		Providers: internalconfig.ProviderConfig{
			ASR: internalconfig.ASRProvider{
				ID:     raw.ASRProvider,
				APIKey: raw.StreamingAPIKey,
			},
			ClassifierBaseURL: raw.ClassifierBaseURL,
			Advisory:          advisory,
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
