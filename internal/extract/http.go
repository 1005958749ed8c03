package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fueltrack/fueltrack-be/internal/filestore"
	"github.com/fueltrack/fueltrack-be/internal/importjob"
)

// HTTPEngineConfig holds the OCR service endpoint configuration.
type HTTPEngineConfig struct {
	URL     string
	Timeout time.Duration
}

// HTTPEngine calls an external OCR/parsing service that shares storage
// access with the pipeline: the request carries the storage descriptor,
// not the file bytes.
type HTTPEngine struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPEngine creates a new HTTPEngine instance.
func NewHTTPEngine(cfg HTTPEngineConfig, logger *slog.Logger) (*HTTPEngine, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("extraction service url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &HTTPEngine{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

type extractRequest struct {
	Storage          string `json:"storage"`
	Path             string `json:"path"`
	OriginalFilename string `json:"original_filename"`
	MimeType         string `json:"mime_type"`
}

type extractResponse struct {
	Confidence      float64                   `json:"confidence"`
	CreationPayload importjob.CreationPayload `json:"creationPayload"`
}

type extractErrorResponse struct {
	Error string `json:"error"`
}

// Extract posts the descriptor to the OCR service. A 2xx response carries
// the creation payload; 4xx is a permanent failure; everything else,
// including transport errors, is transient.
func (e *HTTPEngine) Extract(ctx context.Context, file filestore.Descriptor) (*Result, error) {
	body, err := json.Marshal(extractRequest{
		Storage:          file.Storage,
		Path:             file.Path,
		OriginalFilename: file.OriginalFilename,
		MimeType:         file.MimeType,
	})
	if err != nil {
		return nil, NewPermanentError(fmt.Errorf("failed to marshal extraction request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, NewPermanentError(fmt.Errorf("failed to build extraction request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("extraction request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out extractResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, NewPermanentError(fmt.Errorf("failed to decode extraction response: %w", err))
		}
		return &Result{CreationPayload: out.CreationPayload, Confidence: out.Confidence}, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var out extractErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&out)
		if out.Error == "" {
			out.Error = resp.Status
		}
		e.logger.Warn("Extraction rejected permanently",
			slog.Int("status_code", resp.StatusCode),
			slog.String("error", out.Error),
		)
		return nil, NewPermanentError(fmt.Errorf("extraction rejected: %s", out.Error))

	default:
		return nil, NewTransientError(fmt.Errorf("extraction service unavailable: %s", resp.Status))
	}
}
