// Package client talks to a running transcription server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Juicern/local-asr/internal/domain"
)

// Options are sent as form fields; zero values are left for the server to default.
type Options struct {
	Language         string
	ReturnTimestamps string
	ChunkLengthS     int
	StrideLengthS    int
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// APIError is a non-200 reply from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Transcribe streams the file at path to POST /transcribe and returns the
// decoded body alongside the raw JSON.
func (c *Client) Transcribe(ctx context.Context, path string, opts Options) (domain.Transcript, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Transcript{}, nil, err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, f, filepath.Base(path), opts))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", pr)
	if err != nil {
		pr.Close()
		return domain.Transcript{}, nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		pr.Close()
		return domain.Transcript{}, nil, fmt.Errorf("posting %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Transcript{}, nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
			payload.Error = strings.TrimSpace(string(body))
		}
		return domain.Transcript{}, body, &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}

	var transcript domain.Transcript
	if err := json.Unmarshal(body, &transcript); err != nil {
		return domain.Transcript{}, body, fmt.Errorf("decoding response: %w", err)
	}
	return transcript, body, nil
}

func writeForm(mw *multipart.Writer, src io.Reader, filename string, opts Options) error {
	fields := map[string]string{
		"language":          opts.Language,
		"return_timestamps": opts.ReturnTimestamps,
	}
	if opts.ChunkLengthS > 0 {
		fields["chunk_length_s"] = strconv.Itoa(opts.ChunkLengthS)
	}
	if opts.StrideLengthS > 0 {
		fields["stride_length_s"] = strconv.Itoa(opts.StrideLengthS)
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(name, value); err != nil {
			return err
		}
	}

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}
