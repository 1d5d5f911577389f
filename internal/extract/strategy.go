package extract

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/brandpulse/scout/internal/scrape"
)

// fetchDocument runs the fetch and parses the body into a document. A non-2xx
// status or empty body is reported through scrape.ErrNoResponse so callers
// can retry.
func fetchDocument(ctx context.Context, fetch func(context.Context, scrape.FetchRequest) (scrape.FetchResponse, error), request scrape.FetchRequest) (*goquery.Document, scrape.FetchResponse, error) {
	resp, err := fetch(ctx, request)
	if err != nil {
		return nil, scrape.FetchResponse{}, fmt.Errorf("fetch %s: %w", request.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp, fmt.Errorf("%w: status %d from %s", scrape.ErrNoResponse, resp.StatusCode, request.URL)
	}
	if len(resp.Body) == 0 {
		return nil, resp, fmt.Errorf("%w: empty body from %s", scrape.ErrNoResponse, request.URL)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, resp, fmt.Errorf("parse %s: %w", request.URL, err)
	}
	return doc, resp, nil
}

// baseURL parses the response URL for resolving relative references. A bad
// final URL degrades to unresolved links instead of failing the job.
func baseURL(resp scrape.FetchResponse) *url.URL {
	parsed, err := url.Parse(resp.URL)
	if err != nil {
		return nil
	}
	return parsed
}

// storeSnapshot writes the raw page under <jobID>/<sha256>.html. Snapshot
// failures never fail the job.
func storeSnapshot(ctx context.Context, snapshots scrape.SnapshotStore, logger *zap.Logger, jobID string, body []byte) string {
	if snapshots == nil || len(body) == 0 {
		return ""
	}
	path := fmt.Sprintf("%s/%x.html", jobID, sha256.Sum256(body))
	uri, err := snapshots.Put(ctx, path, "text/html; charset=utf-8", body)
	if err != nil {
		logger.Warn("snapshot write failed",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return ""
	}
	return uri
}
