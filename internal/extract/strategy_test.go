package extract

import (
	"context"
	"sync"
	"time"

	"github.com/brandpulse/scout/internal/scrape"
)

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// stubSession serves canned responses keyed by URL and satisfies both the
// Session and Fetcher shapes used by strategies.
type stubSession struct {
	responses map[string]scrape.FetchResponse
	errs      map[string]error
}

func newStubSession() *stubSession {
	return &stubSession{
		responses: map[string]scrape.FetchResponse{},
		errs:      map[string]error{},
	}
}

func (s *stubSession) serve(url, body string, status int) {
	s.responses[url] = scrape.FetchResponse{
		URL:        url,
		StatusCode: status,
		Body:       []byte(body),
	}
}

func (s *stubSession) Fetch(_ context.Context, request scrape.FetchRequest) (scrape.FetchResponse, error) {
	if err, ok := s.errs[request.URL]; ok {
		return scrape.FetchResponse{}, err
	}
	resp, ok := s.responses[request.URL]
	if !ok {
		return scrape.FetchResponse{}, scrape.ErrNoResponse
	}
	return resp, nil
}

func (s *stubSession) Close() error { return nil }

// memSnapshots records snapshot writes in memory.
type memSnapshots struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (m *memSnapshots) Put(_ context.Context, path, _ string, _ []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.paths = append(m.paths, path)
	return "mem://" + path, nil
}
