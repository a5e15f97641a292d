package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClientConfig contains classifier client configuration.
type ClientConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Client is an HTTP client for the scam-model service. The service accepts a
// transcript fragment and returns a scam probability in [0,1].
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// predictRequest is the JSON body sent to the classifier endpoint.
type predictRequest struct {
	Text string `json:"text"`
}

// predictResponse is the JSON body returned by the classifier endpoint.
type predictResponse struct {
	Text        string  `json:"text"`
	Prediction  string  `json:"prediction"`
	Probability float64 `json:"probability"`
}

// NewClient creates a new classifier HTTP client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Classify sends the text to the scam-model endpoint and returns its
// probability score.
func (c *Client) Classify(ctx context.Context, text string) (float64, error) {
	body, err := json.Marshal(predictRequest{Text: text})
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var prediction predictResponse
	if err := json.Unmarshal(respBody, &prediction); err != nil {
		return 0, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	if prediction.Probability < 0 || prediction.Probability > 1 {
		return 0, fmt.Errorf("classifier returned score %f outside [0,1]", prediction.Probability)
	}

	return prediction.Probability, nil
}
