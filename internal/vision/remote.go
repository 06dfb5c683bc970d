package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/your-org/snapmatch/internal/config"
)

// RemoteProvider calls a deployed vision service over HTTP. Every call is
// bounded by the configured timeout; a timeout surfaces as a retryable
// ProviderError so the photo lands on the normal processing-failed path.
type RemoteProvider struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
}

func NewRemoteProvider(cfg config.VisionConfig) *RemoteProvider {
	return &RemoteProvider{
		client:  &http.Client{},
		baseURL: cfg.ProviderURL,
		timeout: cfg.Timeout,
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func (p *RemoteProvider) AnalyzePhoto(ctx context.Context, image []byte) (*Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/analyze", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &ProviderError{Message: "analyze timed out", Retryable: true}
		}
		return nil, &ProviderError{Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Message: "read analyze response: " + err.Error(), Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Error != "" {
			return nil, &ProviderError{Message: er.Error, Retryable: er.Retryable}
		}
		return nil, &ProviderError{
			Message:   fmt.Sprintf("analyze returned status %d", resp.StatusCode),
			Retryable: resp.StatusCode >= 500,
		}
	}

	var analysis Analysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return nil, &ProviderError{Message: "decode analyze response: " + err.Error(), Retryable: false}
	}
	return &analysis, nil
}
