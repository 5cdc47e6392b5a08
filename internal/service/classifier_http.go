package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"yobot/internal/config"
)

// HTTPModel calls a remote inference server hosting the fine-tuned
// sequence-classification model. The server tokenizes with truncation and
// padding to MaxLength and runs one forward pass per request.
type HTTPModel struct {
	url        string
	maxLength  int
	httpClient *http.Client
}

type logitsRequest struct {
	Inputs     string `json:"inputs"`
	MaxLength  int    `json:"max_length"`
	Truncation bool   `json:"truncation"`
	Padding    string `json:"padding"`
}

type logitsResponse struct {
	Logits json.RawMessage `json:"logits"`
}

// NewHTTPModel creates a client for the inference endpoint
func NewHTTPModel(cfg config.ClassifierConfig) *HTTPModel {
	return &HTTPModel{
		url:       cfg.URL,
		maxLength: cfg.MaxLength,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name identifies the backend in logs
func (m *HTTPModel) Name() string { return "http" }

// Logits returns the two raw scores for text
func (m *HTTPModel) Logits(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(logitsRequest{
		Inputs:     text,
		MaxLength:  m.maxLength,
		Truncation: true,
		Padding:    "max_length",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result logitsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return decodeLogits(result.Logits)
}

// Probe runs one inference to make sure the model is loaded and answering
func (m *HTTPModel) Probe(ctx context.Context) error {
	logits, err := m.Logits(ctx, "hola")
	if err != nil {
		return err
	}
	if _, err := Argmax(logits); err != nil {
		return err
	}
	return nil
}

// decodeLogits accepts a flat [a, b] or a batched [[a, b]] array
func decodeLogits(raw json.RawMessage) ([]float32, error) {
	if len(raw) == 0 {
		return nil, ErrMalformedLogits
	}
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var batched [][]float32
	if err := json.Unmarshal(raw, &batched); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLogits, err)
	}
	if len(batched) != 1 {
		return nil, fmt.Errorf("%w: expected one row, got %d", ErrMalformedLogits, len(batched))
	}
	return batched[0], nil
}
