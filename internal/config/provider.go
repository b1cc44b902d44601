package config

import (
	"fmt"
	"strings"
)

const (
	ASRProviderNative    = "native"
	ASRProviderStreaming = "streaming"

	LanguageTraditionalChinese = "zh-TW"
	LanguageEnglish            = "en-US"

	DefaultAdvisoryPrompt = "根據以下電話內容，解釋為甚麼這段訊息有可能是詐騙，一句話即可，若資訊不足，請回覆為甚麼無法判斷。"

	DefaultRawTemplate = `{
  "model": "gpt-4o",
  "messages": [
    {"role": "system", "content": "You are a helpful assistant."},
    {"role": "user", "content": "{{TEXT}}"}
  ]
}`
)

// ProviderConfig selects the recognition backend and the remote risk
// endpoints. It is read-only to the core and replaced as a whole.
type ProviderConfig struct {
	ASR               ASRProvider
	ClassifierBaseURL string
	Advisory          AdvisoryProvider
}

type ASRProvider struct {
	ID     string
	APIKey string
}

type AdvisoryProvider struct {
	Name              string
	BaseURL           string
	APIKey            string
	Model             string
	UseAuthHeader     bool
	SupportsReasoning bool
	SystemPrompt      string
	RawJSONMode       bool
	RawJSONTemplate   string
	Headers           map[string]string
}

func (p ProviderConfig) Validate() error {
	switch p.ASR.ID {
	case ASRProviderNative, ASRProviderStreaming:
	default:
		return fmt.Errorf("ASR_PROVIDER is invalid: %q", p.ASR.ID)
	}
	if p.Advisory.RawJSONMode && !strings.Contains(p.Advisory.RawJSONTemplate, "{{TEXT}}") {
		return fmt.Errorf("advisory provider %q: raw template must contain {{TEXT}}", p.Advisory.Name)
	}
	return nil
}

// ToggleLanguage flips between the two supported spoken languages.
func ToggleLanguage(lang string) string {
	if lang == LanguageTraditionalChinese {
		return LanguageEnglish
	}
	return LanguageTraditionalChinese
}
