package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/metapantry/internal/apperror"
	"github.com/sakif/metapantry/internal/httpx"
)

const (
	DefaultBaseURL   = "https://api.openai.com"
	DefaultModel     = "gpt-4o"
	DefaultTimeout   = 30 * time.Second
	DefaultMaxTokens = 300

	serviceName  = "vision service"
	maxReplySize = 1 << 20
	firstBackoff = time.Second
	maxBackoff   = 10 * time.Second
)

// Prompt is sent with every image.
const Prompt = `Analyze this food item image and extract the following information in JSON format:
1. name: The name of the food item
2. category: The category (e.g., Dairy, Produce, Meat, etc.)
3. estimated_expiration_days: Estimated days until expiration (integer)

Only respond with valid JSON. Do not include any explanations or notes.`

type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// Client calls the OpenAI chat completions endpoint with one image.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	maxRetries int
	http       *http.Client
	logger     *slog.Logger
	sleep      func(context.Context, time.Duration) error
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:      strings.TrimSpace(cfg.Model),
		maxTokens:  cfg.MaxTokens,
		maxRetries: max(cfg.MaxRetries, 0),
		http:       cfg.HTTPClient,
		logger:     logger.With(slog.String("client", "openai")),
		sleep:      httpx.Sleep,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	return c
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c.apiKey != "" }

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Describe sends a JPEG with Prompt and returns the model's raw text reply.
func (c *Client) Describe(ctx context.Context, jpegData []byte) (string, error) {
	if !c.Configured() {
		return "", apperror.ExternalUnavailable(serviceName, errors.New("OPENAI_API_KEY is not configured"))
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: Prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL("image/jpeg", jpegData)}},
			},
		}},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("vision: encoding request: %w", err)
	}

	raw, err := c.post(ctx, "/v1/chat/completions", body)
	if err != nil {
		return "", apperror.ExternalUnavailable(serviceName, err)
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", apperror.ParseFailure("vision reply", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return "", apperror.ParseFailure("vision reply", errors.New("reply has no message content"))
	}
	return *resp.Choices[0].Message.Content, nil
}

// post retries transport errors and 408/429/5xx up to maxRetries times with
// exponential backoff, honoring Retry-After.
func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	backoff := firstBackoff
	for attempt := 0; ; attempt++ {
		resp, raw, err := c.postOnce(ctx, path, body)
		if err == nil {
			return raw, nil
		}
		if attempt >= c.maxRetries || !httpx.IsRetryable(ctx, err) {
			return nil, err
		}

		wait := httpx.Jitter(httpx.RetryAfter(resp, backoff, maxBackoff))
		c.logger.Warn("vision request retrying",
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", c.maxRetries),
			slog.Duration("sleep", wait),
			slog.String("error", err.Error()),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func (c *Client) postOnce(ctx context.Context, path string, body []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	resp.Body.Close()

	c.logger.Debug("vision request",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, raw, &httpx.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func dataURL(mime string, b []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(b))
}
