package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
)

// CloudConfig configures the MinerU-compatible cloud batch parser.
type CloudConfig struct {
	// Endpoint is the base URL of the batch parsing API. Empty means the
	// tier is not configured.
	Endpoint string
	APIKey   string

	Timeout      time.Duration
	PollInterval time.Duration
	TaskTimeout  time.Duration
}

// DefaultCloudConfig returns sensible defaults; Endpoint and APIKey must
// still be supplied.
func DefaultCloudConfig() CloudConfig {
	return CloudConfig{
		Timeout:      30 * time.Second,
		PollInterval: 3 * time.Second,
		TaskTimeout:  10 * time.Minute,
	}
}

// CloudParser implements the PDF subsystem's cloud batch-parsing fallback
// tier: upload the document, poll a task status endpoint, download the
// resulting zip of MinerU-flavored markdown + media, and translate it into
// ParsedContent.
type CloudParser struct {
	client *http.Client
	config CloudConfig
}

// NewCloudParser builds a cloud parser from cfg.
func NewCloudParser(cfg CloudConfig) *CloudParser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCloudConfig().Timeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultCloudConfig().PollInterval
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultCloudConfig().TaskTimeout
	}
	return &CloudParser{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

// CheckConnectivity pre-validates the endpoint before a caller commits to
// the upload/poll/download round trip, distinguishing the six states the
// parser subsystem must report with LLM-friendly messages.
func (c *CloudParser) CheckConnectivity(ctx context.Context) error {
	if c.config.Endpoint == "" {
		return bundleerrors.New(bundleerrors.ErrCodeNotConfigured,
			"cloud batch parser endpoint is not configured", nil).
			WithSuggestion("set the cloud parser endpoint and API key, or disable the cloud fallback tier")
	}
	if c.config.APIKey == "" {
		return bundleerrors.New(bundleerrors.ErrCodeNotConfigured,
			"cloud batch parser API key is not configured", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(c.config.Endpoint, "/")+"/health", nil)
	if err != nil {
		return bundleerrors.Wrap(bundleerrors.ErrCodeEndpointError, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return bundleerrors.New(bundleerrors.ErrCodeNetworkUnavailable,
			fmt.Sprintf("cloud batch parser unreachable: %v", err), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return bundleerrors.New(bundleerrors.ErrCodeAuthFailed,
			"cloud batch parser rejected the configured API key", nil)
	case resp.StatusCode >= 500:
		return bundleerrors.New(bundleerrors.ErrCodeEndpointError,
			fmt.Sprintf("cloud batch parser returned status %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return bundleerrors.New(bundleerrors.ErrCodeEndpointError,
			fmt.Sprintf("cloud batch parser rejected the health check with status %d", resp.StatusCode), nil)
	}
	return nil
}

type uploadResponse struct {
	TaskID string `json:"task_id"`
}

type statusResponse struct {
	State        string `json:"state"` // "running", "done", "failed"
	ResultURL    string `json:"result_url"`
	ErrorMessage string `json:"error_message"`
}

// ParseDocument uploads path, polls until the task completes, and parses the
// resulting markdown bundle into ParsedContent.
func (c *CloudParser) ParseDocument(ctx context.Context, path string) ([]ParsedContent, error) {
	if err := c.CheckConnectivity(ctx); err != nil {
		return nil, err
	}

	taskID, err := c.upload(ctx, path)
	if err != nil {
		return nil, err
	}

	resultURL, err := c.pollUntilDone(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return c.downloadAndParse(ctx, resultURL)
}

func (c *CloudParser) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", bundleerrors.Wrap(bundleerrors.ErrCodeFileNotFound, err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", path)
	if err != nil {
		return "", fmt.Errorf("cloud: build upload body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("cloud: stage upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("cloud: finalize upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(c.config.Endpoint, "/")+"/tasks", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", bundleerrors.New(bundleerrors.ErrCodeNetworkUnavailable, err.Error(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return "", bundleerrors.New(bundleerrors.ErrCodeEndpointError,
			fmt.Sprintf("cloud parser upload failed with status %d: %s", resp.StatusCode, respBody), nil)
	}

	var uploaded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", fmt.Errorf("cloud: decode upload response: %w", err)
	}
	return uploaded.TaskID, nil
}

func (c *CloudParser) pollUntilDone(ctx context.Context, taskID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.TaskTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return "", bundleerrors.New(bundleerrors.ErrCodeTaskTimeout,
				fmt.Sprintf("cloud parser task %s did not complete within %s", taskID, c.config.TaskTimeout), ctx.Err())
		case <-time.After(c.config.PollInterval):
		}

		status, err := c.fetchStatus(ctx, taskID)
		if err != nil {
			return "", err
		}
		switch status.State {
		case "done":
			return status.ResultURL, nil
		case "failed":
			return "", bundleerrors.New(bundleerrors.ErrCodeTaskFailed,
				fmt.Sprintf("cloud parser task %s failed: %s", taskID, status.ErrorMessage), nil)
		}
	}
}

func (c *CloudParser) fetchStatus(ctx context.Context, taskID string) (statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(c.config.Endpoint, "/")+"/tasks/"+taskID, nil)
	if err != nil {
		return statusResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return statusResponse{}, bundleerrors.New(bundleerrors.ErrCodeNetworkUnavailable, err.Error(), err)
	}
	defer resp.Body.Close()

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return statusResponse{}, fmt.Errorf("cloud: decode task status: %w", err)
	}
	return status, nil
}

func (c *CloudParser) downloadAndParse(ctx context.Context, resultURL string) ([]ParsedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, bundleerrors.New(bundleerrors.ErrCodeNetworkUnavailable, err.Error(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cloud: read result zip: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("cloud: open result zip: %w", err)
	}

	var markdown string
	for _, zf := range zr.File {
		if strings.HasSuffix(zf.Name, ".md") {
			rc, err := zf.Open()
			if err != nil {
				continue
			}
			b, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				continue
			}
			markdown += string(b)
		}
	}

	return parseMinerUMarkdown(markdown), nil
}

// parseMinerUMarkdown turns MinerU-flavored markdown (headings, image
// references, and pipe tables) into ParsedContent, preserving document
// order.
func parseMinerUMarkdown(md string) []ParsedContent {
	var out []ParsedContent
	lines := strings.Split(md, "\n")

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "#"):
			level := 0
			for level < len(trimmed) && trimmed[level] == '#' {
				level++
			}
			out = append(out, ParsedContent{
				Type:  ContentHeading,
				Text:  strings.TrimSpace(trimmed[level:]),
				Level: level,
			})
		case strings.HasPrefix(trimmed, "!["):
			alt, _ := extractMarkdownImageAlt(trimmed)
			out = append(out, ParsedContent{Type: ContentImage, AltText: alt})
		case strings.HasPrefix(trimmed, "|"):
			rows, consumed := extractMarkdownTable(lines[i:])
			out = append(out, ParsedContent{Type: ContentTable, Rows: rows})
			i += consumed - 1
		default:
			out = append(out, ParsedContent{Type: ContentText, Text: trimmed})
		}
	}
	return out
}

func extractMarkdownImageAlt(line string) (string, bool) {
	start := strings.Index(line, "[")
	end := strings.Index(line, "]")
	if start < 0 || end < 0 || end < start {
		return "", false
	}
	return line[start+1 : end], true
}

func extractMarkdownTable(lines []string) ([][]string, int) {
	var rows [][]string
	n := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") {
			break
		}
		n++
		cells := strings.Split(strings.Trim(trimmed, "|"), "|")
		isSeparator := true
		for _, c := range cells {
			if strings.Trim(strings.TrimSpace(c), "-: ") != "" {
				isSeparator = false
				break
			}
		}
		if isSeparator {
			continue
		}
		row := make([]string, len(cells))
		for i, c := range cells {
			row[i] = strings.TrimSpace(c)
		}
		rows = append(rows, row)
	}
	return rows, n
}
