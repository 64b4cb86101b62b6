// internal/api/client.go
package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edanliahovetsky/bline-engine/internal/storage"
)

// uploads are retried on transport errors and 5xx responses
const uploadAttempts = 3

// Client handles communication with the trajectory viewer frontend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retryWait  time.Duration
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryWait:  500 * time.Millisecond,
	}
}

// Healthcheck checks if the trajectory viewer is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Upload sends a gzipped JSON run export to the trajectory viewer. Transport
// errors and 5xx responses are retried with a doubling backoff; 4xx responses
// and local file errors fail immediately.
func (c *Client) Upload(filePath string, meta storage.UploadMetadata) error {
	wait := c.retryWait
	var err error
	for attempt := 1; attempt <= uploadAttempts; attempt++ {
		var retry bool
		retry, err = c.uploadOnce(filePath, meta)
		if err == nil {
			return nil
		}
		if !retry || attempt == uploadAttempts {
			return err
		}
		time.Sleep(wait)
		wait *= 2
	}
	return err
}

// uploadOnce performs a single upload request. The file is reopened per
// attempt so the stream starts from the beginning each time.
func (c *Client) uploadOnce(filePath string, meta storage.UploadMetadata) (retry bool, err error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// Create multipart form
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	// Write form fields and file in goroutine
	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		defer writer.Close()

		// Form fields
		_ = writer.WriteField("secret", c.apiKey)
		_ = writer.WriteField("filename", filepath.Base(filePath))
		_ = writer.WriteField("documentName", meta.DocumentName)
		_ = writer.WriteField("runId", meta.RunID)
		_ = writer.WriteField("outcome", meta.Outcome)
		_ = writer.WriteField("durationSeconds", fmt.Sprintf("%f", meta.DurationSeconds))
		if meta.PlannedPolyline != "" {
			_ = writer.WriteField("plannedPath", meta.PlannedPolyline)
		}

		// File
		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			errCh <- fmt.Errorf("failed to create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			errCh <- fmt.Errorf("failed to copy file: %w", err)
			return
		}
		errCh <- nil
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/runs/add", pr)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	// An early server rejection also aborts the body stream, so the status
	// is classified before the writer goroutine's error. The channel is
	// buffered; skipping the read on error paths leaks nothing.
	if resp.StatusCode >= http.StatusInternalServerError {
		return true, fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("upload returned status %d", resp.StatusCode)
	}

	if writeErr := <-errCh; writeErr != nil {
		return false, writeErr
	}
	return false, nil
}
