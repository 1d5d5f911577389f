// Package browser provides the page-fetch resources used by extraction
// strategies: headless-browser sessions and a lightweight HTTP fetcher.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/brandpulse/scout/internal/scrape"
)

// Config controls the behavior of the browser session manager.
type Config struct {
	MaxParallel int
	UserAgent   string
	NavTimeout  time.Duration
}

// Manager implements scrape.SessionManager using chromedp and a shared
// headless Chrome allocator. Sessions hold one parallelism slot each.
type Manager struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewManager creates a session manager backed by chromedp.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Manager{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, tearing down the browser process.
func (m *Manager) Close() {
	m.allocCancel()
}

// Acquire reserves a parallelism slot and returns a session bound to it.
// The caller must Close the session even when a later step fails.
func (m *Manager) Acquire(ctx context.Context) (scrape.Session, error) {
	if m.limiter != nil {
		select {
		case m.limiter <- struct{}{}:
		case <-ctx.Done():
			return nil, fmt.Errorf("browser slot wait: %w", ctx.Err())
		}
	}
	return &session{mgr: m}, nil
}

type session struct {
	mgr       *Manager
	closeOnce sync.Once
}

// Close releases the session's parallelism slot.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		if s.mgr.limiter != nil {
			<-s.mgr.limiter
		}
	})
	return nil
}

// Fetch navigates a fresh tab and returns the fully rendered DOM. Stylesheet,
// font, and image sub-resources are aborted to cut render latency.
func (s *session) Fetch(ctx context.Context, request scrape.FetchRequest) (scrape.FetchResponse, error) {
	taskCtx, taskCancel := chromedp.NewContext(s.mgr.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, s.mgr.cfg.NavTimeout)
	defer cancel()

	// Honor caller cancellation while the tab context runs off the allocator.
	stop := propagateCancel(ctx, taskCancel)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)
	listenForBlockedRequests(taskCtx)

	start := time.Now()
	html, finalURL, err := s.runRendered(taskCtx, request)
	if err != nil {
		return scrape.FetchResponse{}, err
	}

	status, headers, responseURL := meta.snapshotWithFallbacks(request.URL, finalURL)
	if headers == nil {
		headers = http.Header{}
	}

	return scrape.FetchResponse{
		URL:        responseURL,
		StatusCode: status,
		Headers:    headers,
		Body:       []byte(html),
		Duration:   time.Since(start),
		Rendered:   true,
	}, nil
}

func (s *session) runRendered(ctx context.Context, request scrape.FetchRequest) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		s.networkSetupAction(request.Headers),
		blockSubresourcesAction(),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if request.WaitSelector != "" {
		actions = append(actions, chromedp.WaitVisible(request.WaitSelector, chromedp.ByQuery))
	}
	if request.Script != "" {
		var ignored any
		actions = append(actions, chromedp.Evaluate(request.Script, &ignored))
	}
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (s *session) networkSetupAction(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.mgr.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.mgr.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// blockSubresourcesAction aborts stylesheet, font, and image loads through
// the fetch domain so pages capture faster.
func blockSubresourcesAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		patterns := []*fetch.RequestPattern{
			{ResourceType: network.ResourceTypeStylesheet},
			{ResourceType: network.ResourceTypeFont},
			{ResourceType: network.ResourceTypeImage},
		}
		if err := fetch.Enable().WithPatterns(patterns).Do(ctx); err != nil {
			return fmt.Errorf("enable fetch interception: %w", err)
		}
		return nil
	})
}

// listenForBlockedRequests fails every paused request; only the blocked
// resource types are ever paused given the patterns registered above.
func listenForBlockedRequests(taskCtx context.Context) {
	chromedp.ListenTarget(taskCtx, func(ev any) {
		pev, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(taskCtx)
			execCtx := cdp.WithExecutor(taskCtx, c.Target)
			_ = fetch.FailRequest(pev.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
		}()
	})
}

func propagateCancel(ctx context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{
		headers: http.Header{},
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		case []interface{}:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	m.mu.RLock()
	status, headers, url := m.status, cloneHeader(m.headers), m.url
	m.mu.RUnlock()
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}

func cloneHeader(src http.Header) http.Header {
	if src == nil {
		return nil
	}
	dst := make(http.Header, len(src))
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
	return dst
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
