package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pricewatch/internal/model"
)

// Client calls an external structured-extraction service that renders a
// product page and returns fields matching the requested schema. Page layouts
// are not known in advance, so the request carries both a field schema and a
// natural-language instruction.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a new extraction client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

const extractPrompt = "Extract from this e-commerce product page: the main product title or name (as productName or title), the current selling price (as currentPrice or price), currency code (e.g. INR, USD), and the main product image URL. Sites may use different labels; capture the visible product name and price."

// scrapeRequest is the fixed structured-output request sent for every page
type scrapeRequest struct {
	URL     string         `json:"url"`
	Formats []scrapeFormat `json:"formats"`
}

type scrapeFormat struct {
	Type   string         `json:"type"`
	Schema map[string]any `json:"schema"`
	Prompt string         `json:"prompt"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		JSON map[string]any `json:"json"`
	} `json:"data"`
}

func extractionSchema() map[string]any {
	fields := []string{
		"productName", "product_name", "title", "name",
		"currentPrice", "current_price", "price",
		"currencyCode", "currency_code",
		"productImageUrl", "product_image_url", "image",
	}
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		props[f] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

// Extract fetches the page through the extraction service and normalizes the
// heterogeneous payload into ExtractedData. The raw payload never leaves this
// package.
func (c *Client) Extract(ctx context.Context, pageURL string) (model.ExtractedData, error) {
	raw, err := c.scrapeWithRetry(ctx, pageURL, 2)
	if err != nil {
		return model.ExtractedData{}, err
	}
	return Normalize(raw, pageURL), nil
}

// scrapeWithRetry calls the extraction endpoint with retry logic
func (c *Client) scrapeWithRetry(ctx context.Context, pageURL string, maxRetries int) (map[string]any, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		raw, retryable, err := c.scrape(ctx, pageURL)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, lastErr
}

func (c *Client) scrape(ctx context.Context, pageURL string) (raw map[string]any, retryable bool, err error) {
	body, err := json.Marshal(scrapeRequest{
		URL: pageURL,
		Formats: []scrapeFormat{{
			Type:   "json",
			Schema: extractionSchema(),
			Prompt: extractPrompt,
		}},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to call extraction service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read extraction response: %w", err)
	}

	// 429 and 5xx are worth retrying, client errors are not
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("extraction service returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed scrapeResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, false, fmt.Errorf("failed to decode extraction response: %w", err)
	}
	if !parsed.Success {
		return nil, false, fmt.Errorf("extraction failed: %s", parsed.Error)
	}
	if parsed.Data.JSON == nil {
		return map[string]any{}, false, nil
	}

	return parsed.Data.JSON, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
