package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// TraceMetadata describes an uploaded trace.
type TraceMetadata struct {
	SessionID   string
	SessionName string
	Author      string
	Cars        int
	Ticks       int
	Duration    float64 // seconds of simulated time
	Tag         string
}

// Client uploads exported traces to a trace archive server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the archive server is reachable.
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

// Upload streams a trace file as a multipart form.
func (c *Client) Upload(filePath string, meta TraceMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		defer writer.Close()

		fields := [][2]string{
			{"secret", c.apiKey},
			{"filename", filepath.Base(filePath)},
			{"sessionId", meta.SessionID},
			{"sessionName", meta.SessionName},
			{"author", meta.Author},
			{"cars", strconv.Itoa(meta.Cars)},
			{"ticks", strconv.Itoa(meta.Ticks)},
			{"duration", strconv.FormatFloat(meta.Duration, 'f', 3, 64)},
			{"tag", meta.Tag},
		}
		for _, f := range fields {
			if err := writer.WriteField(f[0], f[1]); err != nil {
				errCh <- fmt.Errorf("failed to write field %s: %w", f[0], err)
				return
			}
		}

		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			errCh <- fmt.Errorf("failed to create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			errCh <- fmt.Errorf("failed to copy trace: %w", err)
			return
		}
		errCh <- nil
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/traces", pr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if writeErr := <-errCh; writeErr != nil {
		return writeErr
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	return nil
}
