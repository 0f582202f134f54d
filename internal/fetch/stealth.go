package fetch

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"
)

// DefaultTimeout is the per-request deadline when none is configured.
const DefaultTimeout = 20 * time.Second

// Options configures a stealth client.
type Options struct {
	UseProxy bool          // Route requests through the pool
	ProxyURL string        // Pins a specific proxy, overriding the pool
	Timeout  time.Duration // Per-request deadline; DefaultTimeout when zero
}

// Response is the fetched document plus enough context to classify failures.
type Response struct {
	StatusCode int
	Body       string
	FinalURL   string
}

// StealthClient issues browser-like GETs. A client picks its proxy once at
// construction (or pins Options.ProxyURL); build a fresh client per burst to
// rotate identity and cookies.
type StealthClient struct {
	httpClient *http.Client
	rng        *rand.Rand
	rngMu      sync.Mutex
	cookies    []*http.Cookie
	log        zerolog.Logger
}

// NewStealthClient builds a client. pool may be nil when proxying is off.
func NewStealthClient(opts Options, pool *ProxyPool, log zerolog.Logger) (*StealthClient, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pinned proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	} else if opts.UseProxy && pool != nil {
		if entry := pool.Next(); entry != nil {
			transport.Proxy = http.ProxyURL(entry.URL)
		}
	}

	return &StealthClient{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		log: log.With().Str("component", "stealth_client").Logger(),
	}, nil
}

// SeedCookies synthesizes a session cookie for vendor, stable for this
// client's lifetime (one burst).
func (c *StealthClient) SeedCookies(vendor string) {
	c.rngMu.Lock()
	cookie := SynthesizeSessionCookie(c.rng, vendor)
	c.rngMu.Unlock()
	c.cookies = append(c.cookies, cookie)
}

// Get fetches targetURL with a randomized browser fingerprint.
func (c *StealthClient) Get(ctx context.Context, targetURL, referer string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	c.rngMu.Lock()
	ApplyBrowserHeaders(req, c.rng, referer)
	c.rngMu.Unlock()
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		FinalURL:   finalURL,
	}, nil
}

// RandomSleep sleeps a uniformly random duration in [min, max), honoring ctx.
func (c *StealthClient) RandomSleep(ctx context.Context, min, max time.Duration) {
	c.rngMu.Lock()
	d := min + time.Duration(c.rng.Int63n(int64(max-min)))
	c.rngMu.Unlock()

	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// readBody decompresses bodies the transport did not handle. The transport
// only auto-gunzips when it set Accept-Encoding itself; the browser
// fingerprint advertises gzip, deflate and br, so all three must be decoded
// here.
func readBody(resp *http.Response) (string, error) {
	var reader io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		// Servers disagree on whether "deflate" means zlib-wrapped or raw
		// flate. Sniff the zlib header byte.
		buffered := bufio.NewReader(resp.Body)
		if head, err := buffered.Peek(1); err == nil && head[0] == 0x78 {
			zr, err := zlib.NewReader(buffered)
			if err != nil {
				return "", err
			}
			defer zr.Close()
			reader = zr
		} else {
			fr := flate.NewReader(buffered)
			defer fr.Close()
			reader = fr
		}
	case "br":
		reader = brotli.NewReader(resp.Body)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
