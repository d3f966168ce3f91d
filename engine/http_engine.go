package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html/charset"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

// HTTPEngine fetches the served document with a plain GET. It runs no
// JavaScript, so it only wins when the result list is already in the markup.
type HTTPEngine struct {
	client *http.Client
	opts   HTTPOptions
}

// HTTPOptions configures an HTTPEngine.
type HTTPOptions struct {
	UserAgent      string
	AcceptLanguage string

	// Proxy routes requests through a proxy. Proxied connections use the
	// standard TLS stack, not the Chrome fingerprint.
	Proxy string

	// Timeout bounds a single fetch.
	Timeout time.Duration
}

// chromeHello is Chrome's ClientHello with ALPN pinned to http/1.1;
// http.Transport cannot speak h2 over a utls connection. nil if utls
// cannot produce the spec, in which case the standard TLS stack is used.
var chromeHello = func() *tls.ClientHelloSpec {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return nil
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return &spec
}()

// NewHTTPEngine creates an HTTPEngine that presents a Chrome TLS fingerprint.
func NewHTTPEngine(opts HTTPOptions) (*HTTPEngine, error) {
	transport := &http.Transport{ForceAttemptHTTP2: false}
	if chromeHello != nil {
		transport.DialTLSContext = dialChrome
	}
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("http_engine: parse proxy: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("http_engine: stopped after %d redirects", len(via))
			}
			return nil
		},
	}
	return &HTTPEngine{client: client, opts: opts}, nil
}

func dialChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	raw, err := (&net.Dialer{Timeout: 10 * time.Second}).DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		raw.Close()
		return nil, err
	}

	conn := tls.UClient(raw, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := conn.ApplyPreset(chromeHello); err != nil {
		raw.Close()
		return nil, fmt.Errorf("http_engine: apply tls preset: %w", err)
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, err
	}
	return conn, nil
}

func (e *HTTPEngine) Name() string { return "http" }

// Fetch GETs req.URL. Error statuses and non-HTML bodies are errors so the
// dispatcher moves on to the browser. The body is decoded to UTF-8 using the
// declared or sniffed charset.
func (e *HTTPEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	ctx, cancel := withTimeout(ctx, e.opts.Timeout, req.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("http_engine: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Encoding", "identity")
	if e.opts.UserAgent != "" {
		httpReq.Header.Set("User-Agent", e.opts.UserAgent)
	}
	if e.opts.AcceptLanguage != "" {
		httpReq.Header.Set("Accept-Language", e.opts.AcceptLanguage)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("http_engine: status %d", resp.StatusCode)
	}
	if !isHTMLContentType(ct) {
		return nil, fmt.Errorf("http_engine: unexpected content type %q", ct)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), ct)
	if err != nil {
		return nil, fmt.Errorf("http_engine: decode body: %w", err)
	}
	markup, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("http_engine: read body: %w", err)
	}

	return &FetchResult{
		HTML:       string(markup),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		EngineName: e.Name(),
	}, nil
}

// withTimeout applies the tighter of the two positive timeouts to ctx.
func withTimeout(ctx context.Context, a, b time.Duration) (context.Context, context.CancelFunc) {
	d := a
	if b > 0 && (d <= 0 || b < d) {
		d = b
	}
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}
