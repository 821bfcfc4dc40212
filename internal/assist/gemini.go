package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kokistudios/kiln/internal/secret"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-1.5-flash"
	defaultTimeout       = 60 * time.Second
)

// Gemini calls the Gemini generateContent REST endpoint. The API key is
// read from the secret store on every call so it can be set or removed
// while Kiln is running.
type Gemini struct {
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Secrets     secret.Store

	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGemini builds a client with the given timeout. A zero timeout uses
// the default.
func NewGemini(secrets secret.Store, model string, temperature float64, maxTokens int, timeout time.Duration) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gemini{
		BaseURL:     defaultGeminiBaseURL,
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Secrets:     secrets,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

func (g *Gemini) Name() string {
	return "gemini"
}

func (g *Gemini) Available() error {
	_, err := g.apiKey()
	return err
}

func (g *Gemini) apiKey() (string, error) {
	if g.Secrets == nil {
		return "", ErrNoCredential
	}
	key, err := g.Secrets.Get(secret.GeminiAPIKey)
	if errors.Is(err, secret.ErrNotFound) || (err == nil && key == "") {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("%w: cannot read API key: %v", ErrNoCredential, err)
	}
	return key, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends prompt and returns the first candidate's text.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	key, err := g.apiKey()
	if err != nil {
		return "", err
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", &TransportError{Err: err}
		}
	}

	var req geminiRequest
	req.Contents = []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}
	req.GenerationConfig.Temperature = g.Temperature
	req.GenerationConfig.MaxOutputTokens = g.MaxTokens

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(g.BaseURL, "/"), g.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", key)

	client := g.httpClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr geminiError
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return "", &RemoteError{StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
		}
		return "", &RemoteError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	var out geminiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", ErrInvalidResponse
	}
	text := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", ErrInvalidResponse
	}
	return text, nil
}
