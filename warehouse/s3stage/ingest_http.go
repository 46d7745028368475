package s3stage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pithecene-io/snowsink/ingest"
	"github.com/pithecene-io/snowsink/snowerr"
)

// httpIngestService is a minimal REST client for a Snowpipe-compatible
// asynchronous ingestion API: insertFiles queues a batch, and two
// separate report endpoints (recent vs. one-hour history) expose load
// outcome. No client library in the example corpus models this kind of
// warehouse-specific ingest REST API, so this talks to it directly over
// net/http rather than through an intermediate HTTP framework.
type httpIngestService struct {
	baseURL string
	pipe    string
	client  *http.Client
}

func newHTTPIngestService(baseURL, pipe string) *httpIngestService {
	return &httpIngestService{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		pipe:    pipe,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type insertFilesRequest struct {
	Files []string `json:"files"`
}

func (s *httpIngestService) IngestFiles(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return nil
	}
	body, err := json.Marshal(insertFilesRequest{Files: files})
	if err != nil {
		return fmt.Errorf("encoding insertFiles request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/pipes/%s/insertFiles", s.baseURL, url.PathEscape(s.pipe))
	return s.postJSON(ctx, endpoint, body, nil)
}

type reportEntry struct {
	File   string        `json:"file"`
	Status ingest.Status `json:"status"`
}

type reportResponse struct {
	Files []reportEntry `json:"files"`
}

func (s *httpIngestService) ReadIngestReport(ctx context.Context, files []string) (map[string]ingest.Status, error) {
	body, err := json.Marshal(insertFilesRequest{Files: files})
	if err != nil {
		return nil, fmt.Errorf("encoding ingestReport request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/pipes/%s/ingestReport", s.baseURL, url.PathEscape(s.pipe))
	var resp reportResponse
	if err := s.postJSON(ctx, endpoint, body, &resp); err != nil {
		return nil, err
	}
	return toStatusMap(files, resp.Files), nil
}

func (s *httpIngestService) ReadOneHourHistory(ctx context.Context, files []string, since time.Time) (map[string]ingest.Status, error) {
	endpoint := fmt.Sprintf("%s/v1/pipes/%s/loadHistory?since=%s", s.baseURL, url.PathEscape(s.pipe), since.UTC().Format(time.RFC3339))
	body, err := json.Marshal(insertFilesRequest{Files: files})
	if err != nil {
		return nil, fmt.Errorf("encoding loadHistory request: %w", err)
	}
	var resp reportResponse
	if err := s.postJSON(ctx, endpoint, body, &resp); err != nil {
		return nil, err
	}
	return toStatusMap(files, resp.Files), nil
}

func (s *httpIngestService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *httpIngestService) postJSON(ctx context.Context, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request to %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return snowerr.Classify(err, "ingest_http", s.pipe)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return snowerr.Classify(fmt.Errorf("ingest endpoint returned status %d", resp.StatusCode), "ingest_http", s.pipe)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}
	return nil
}

func toStatusMap(requested []string, entries []reportEntry) map[string]ingest.Status {
	result := make(map[string]ingest.Status, len(requested))
	for _, f := range requested {
		result[f] = ingest.StatusNotFound
	}
	for _, e := range entries {
		result[e.File] = e.Status
	}
	return result
}

var _ ingest.Service = (*httpIngestService)(nil)
