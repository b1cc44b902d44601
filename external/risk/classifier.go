package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/foxseedlab/scamwatch/internal/risk"
)

const maxResponseBody = 1 << 20

type predictRequest struct {
	Message string `json:"message"`
}

type predictResponse struct {
	TextReceived    string   `json:"text_received"`
	ScamProbability *float64 `json:"scam_probability"`
	IsRisk          bool     `json:"is_risk"`
	Advice          *string  `json:"advice"`
}

// HTTPClassifier calls the fast scam detection service.
type HTTPClassifier struct {
	endpoint string
	client   *http.Client
}

func NewHTTPClassifier(baseURL string, client *http.Client) *HTTPClassifier {
	return &HTTPClassifier{endpoint: joinURL(baseURL, "predict"), client: client}
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (risk.Classification, error) {
	b, err := json.Marshal(predictRequest{Message: text})
	if err != nil {
		return risk.Classification{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return risk.Classification{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := doRequest(c.client, req)
	if err != nil {
		return risk.Classification{}, err
	}
	var resp predictResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return risk.Classification{}, fmt.Errorf("decode classifier response: %w", err)
	}
	if resp.ScamProbability == nil {
		return risk.Classification{}, fmt.Errorf("classifier response has no scam_probability")
	}
	out := risk.Classification{
		TextReceived: resp.TextReceived,
		Probability:  *resp.ScamProbability,
		IsRisk:       resp.IsRisk,
	}
	if resp.Advice != nil {
		out.Advice = *resp.Advice
	}
	return out, nil
}

// do sends req and returns the body of a 2xx response.
func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, err
	}
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return nil, fmt.Errorf("%s returned status %d", req.URL.Path, resp.StatusCode)
	}
	return body, nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

func joinURL(base, path string) string {
	if strings.HasSuffix(base, "/") {
		return base + path
	}
	return base + "/" + path
}
