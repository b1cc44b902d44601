package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/foxseedlab/scamwatch/internal/config"
)

const (
	advisoryMaxTokens = 1500
	userContentPrefix = "電話內容:"
	noAdvice          = "無法取得建議"

	rawParsedExcerpt   = 100
	rawUnparsedExcerpt = 150

	ModeStructured  = "structured"
	ModeRawTemplate = "raw_template"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type reasoning struct {
	Enabled bool `json:"enabled"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Reasoning *reasoning    `json:"reasoning,omitempty"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message *chatMessage `json:"message"`
	} `json:"choices"`
}

func (r chatResponse) firstContent() string {
	if len(r.Choices) == 0 || r.Choices[0].Message == nil {
		return ""
	}
	return r.Choices[0].Message.Content
}

// StructuredAdvisor sends an OpenAI-style chat completion request.
type StructuredAdvisor struct {
	provider config.AdvisoryProvider
	client   *http.Client
}

func NewStructuredAdvisor(p config.AdvisoryProvider, client *http.Client) *StructuredAdvisor {
	return &StructuredAdvisor{provider: p, client: client}
}

func (a *StructuredAdvisor) Mode() string { return ModeStructured }

func (a *StructuredAdvisor) endpoint() string {
	u := joinURL(a.provider.BaseURL, "chat/completions")
	if a.provider.UseAuthHeader {
		return u
	}
	return u + "?token=" + url.QueryEscape(a.provider.APIKey)
}

func (a *StructuredAdvisor) Advise(ctx context.Context, text string) (string, error) {
	payload := chatRequest{
		Model: a.provider.Model,
		Messages: []chatMessage{
			{Role: "system", Content: a.provider.SystemPrompt},
			{Role: "user", Content: userContentPrefix + text},
		},
		MaxTokens: advisoryMaxTokens,
	}
	if a.provider.SupportsReasoning {
		payload.Reasoning = &reasoning{Enabled: false}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(), bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.provider.UseAuthHeader {
		req.Header.Set("Authorization", "Bearer "+a.provider.APIKey)
	}
	for k, v := range a.provider.Headers {
		req.Header.Set(k, v)
	}

	body, err := doRequest(a.client, req)
	if err != nil {
		return "", err
	}
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if content := resp.firstContent(); content != "" {
		return content, nil
	}
	return noAdvice, nil
}

// RawTemplateAdvisor posts a user supplied JSON body with the transcript
// substituted for {{TEXT}}.
type RawTemplateAdvisor struct {
	provider config.AdvisoryProvider
	client   *http.Client
}

func NewRawTemplateAdvisor(p config.AdvisoryProvider, client *http.Client) *RawTemplateAdvisor {
	return &RawTemplateAdvisor{provider: p, client: client}
}

func (a *RawTemplateAdvisor) Mode() string { return ModeRawTemplate }

// FillTemplate escapes text as JSON string content (quotes, backslashes
// and control characters) so a template whose placeholder sits inside a
// JSON string stays valid JSON.
func FillTemplate(template, text string) string {
	return strings.ReplaceAll(template, "{{TEXT}}", jsonStringContent(text))
}

func jsonStringContent(text string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(text); err != nil {
		return text
	}
	quoted := strings.TrimSuffix(buf.String(), "\n")
	return quoted[1 : len(quoted)-1]
}

func (a *RawTemplateAdvisor) Advise(ctx context.Context, text string) (string, error) {
	body := FillTemplate(a.provider.RawJSONTemplate, text)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.provider.BaseURL, strings.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if a.provider.UseAuthHeader && strings.TrimSpace(a.provider.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+a.provider.APIKey)
	}
	for k, v := range a.provider.Headers {
		req.Header.Set(k, v)
	}

	raw, err := doRequest(a.client, req)
	if err != nil {
		return "", err
	}
	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "Raw: " + excerpt(string(raw), rawUnparsedExcerpt), nil
	}
	if content := resp.firstContent(); strings.TrimSpace(content) != "" {
		return content, nil
	}
	return "Raw: " + excerpt(string(raw), rawParsedExcerpt) + "...", nil
}

// excerpt returns at most n characters of s.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
