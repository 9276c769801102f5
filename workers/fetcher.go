package workers

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultMaxPageBytes = 2 << 20 // 2 MiB
	defaultUserAgent    = "agentflow-researcher/1.0"
	maxRedirects        = 5
)

// Page is one fetched web page reduced to markdown.
type Page struct {
	URL      string
	Title    string
	Markdown string
}

// Fetcher retrieves web pages for the Researcher. Every URL is screened
// before a connection is made, and the resolved addresses are screened
// again at dial time so a hostile DNS answer cannot steer a request at an
// internal address.
type Fetcher struct {
	client    *http.Client
	converter *pageConverter
	userAgent string
	maxBytes  int64
}

// NewFetcher creates a Fetcher. Zero values select the defaults: a 30s
// timeout, a 2 MiB page cap and the agentflow user agent.
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxPageBytes
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           guardedDial(dialer),
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (max %d)", maxRedirects)
				}
				if err := validateURL(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		converter: newPageConverter(),
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// guardedDial wraps a dialer so connections only reach addresses that
// resolve entirely to public IPs. Hostname screening alone leaves the
// DNS rebinding hole open.
func guardedDial(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("DNS lookup failed: %w", err)
		}

		for _, ip := range ips {
			if isPrivateIP(ip.IP) {
				return nil, fmt.Errorf("connection to private IP %s is not allowed", ip.IP)
			}
		}

		for _, ip := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.IP.String(), port))
			if err == nil {
				return conn, nil
			}
		}

		return nil, fmt.Errorf("failed to connect to any resolved IP")
	}
}

// FetchPage retrieves one page and converts it to markdown.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("page too large (exceeds %d bytes)", f.maxBytes)
	}

	page := &Page{URL: rawURL}
	contentType := resp.Header.Get("Content-Type")
	switch {
	case contentType == "" || strings.Contains(contentType, "html"):
		title, markdown, err := f.converter.convert(pageURL, body)
		if err != nil {
			return nil, fmt.Errorf("convert page: %w", err)
		}
		page.Title, page.Markdown = title, markdown
	case strings.HasPrefix(contentType, "text/"):
		page.Markdown = strings.TrimSpace(string(body))
	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}

	if page.Markdown == "" {
		return nil, fmt.Errorf("page had no extractable content")
	}
	return page, nil
}
