package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bundleerrors "github.com/preflightbundle/preflightbundle/internal/errors"
)

func buildResultZip(t *testing.T, markdown string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("result.md")
	require.NoError(t, err)
	_, err = w.Write([]byte(markdown))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestCloudParser_ParseDocument_FullRoundTrip(t *testing.T) {
	md := "# Heading\n\nSome body text.\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"
	resultZip := buildResultZip(t, md)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"task_id":"task-1"}`))
	})
	var srv *httptest.Server
	mux.HandleFunc("/tasks/task-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"state":"done","result_url":"` + srv.URL + `/download"}`))
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		w.Write(resultZip)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	src := t.TempDir()
	docPath := filepath.Join(src, "scan.pdf")
	require.NoError(t, os.WriteFile(docPath, []byte("%PDF-fake"), 0o644))

	c := NewCloudParser(CloudConfig{Endpoint: srv.URL, APIKey: "k", PollInterval: 0})
	contents, err := c.ParseDocument(context.Background(), docPath)
	require.NoError(t, err)
	require.NotEmpty(t, contents)

	var sawHeading, sawTable bool
	for _, content := range contents {
		if content.Type == ContentHeading && content.Text == "Heading" {
			sawHeading = true
		}
		if content.Type == ContentTable {
			sawTable = true
		}
	}
	assert.True(t, sawHeading)
	assert.True(t, sawTable)
}

func TestCloudParser_CheckConnectivity_NotConfigured(t *testing.T) {
	c := NewCloudParser(CloudConfig{})
	err := c.CheckConnectivity(context.Background())
	require.Error(t, err)
	var be *bundleerrors.BundleError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, bundleerrors.ErrCodeNotConfigured, be.Code)
}

func TestCloudParser_CheckConnectivity_AuthFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewCloudParser(CloudConfig{Endpoint: srv.URL, APIKey: "bad-key"})
	err := c.CheckConnectivity(context.Background())
	require.Error(t, err)
	var be *bundleerrors.BundleError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, bundleerrors.ErrCodeAuthFailed, be.Code)
}

func TestCloudParser_CheckConnectivity_Unreachable(t *testing.T) {
	c := NewCloudParser(CloudConfig{Endpoint: "http://127.0.0.1:1", APIKey: "k", Timeout: 1})
	err := c.CheckConnectivity(context.Background())
	require.Error(t, err)
	var be *bundleerrors.BundleError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, bundleerrors.ErrCodeNetworkUnavailable, be.Code)
}

func TestExtractMarkdownTable(t *testing.T) {
	lines := []string{"| a | b |", "|---|---|", "| 1 | 2 |", "not a table row"}
	rows, consumed := extractMarkdownTable(lines)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "b"}, rows[0])
	assert.Equal(t, []string{"1", "2"}, rows[1])
	assert.Equal(t, 3, consumed)
}
