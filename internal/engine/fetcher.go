package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Blameying/M3U8-Downloader/internal/domain"
	"github.com/Blameying/M3U8-Downloader/internal/infra/logger"
)

// Fetcher resolves segment names against the base URL and downloads them
// over HTTP. One Fetcher is shared by all workers: the base URL and header
// set are read-only after construction.
type Fetcher struct {
	client  *http.Client
	base    *url.URL
	headers []domain.HeaderEntry
	log     *logger.Logger
}

func NewFetcher(baseURL string, headers []domain.HeaderEntry, timeout time.Duration, log *logger.Logger) (*Fetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %s: %w", baseURL, err)
	}

	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		base:    base,
		headers: headers,
		log:     log,
	}, nil
}

// FetchChunk downloads every segment in the chunk, in order, forwarding each
// body to the writer channel. A failed segment is logged, reported through
// onFail and skipped; it never aborts the rest of the chunk. No retries.
func (f *Fetcher) FetchChunk(ctx context.Context, chunk []string, payloads chan<- domain.SegmentPayload, onFail func(name string, err error)) {
	for _, name := range chunk {
		data, err := f.fetch(ctx, name)
		if err != nil {
			f.log.Warn("segment %s download failed: %v", name, err)
			onFail(name, err)
			continue
		}
		payloads <- domain.SegmentPayload{Name: name, Data: data}
	}
}

func (f *Fetcher) fetch(ctx context.Context, name string) ([]byte, error) {
	ref, err := url.Parse(name)
	if err != nil {
		return nil, fmt.Errorf("unresolvable segment name: %w", err)
	}
	segURL := f.base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, segURL.String(), nil)
	if err != nil {
		return nil, err
	}
	for _, h := range f.headers {
		// The Host header doesn't live in the header map in net/http
		if strings.EqualFold(h.Name, "Host") {
			req.Host = h.Value
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read body: %w", err)
	}

	return data, nil
}
