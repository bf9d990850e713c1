package whttp

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const (
	userAgent   = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	maxBodySize = 10 << 20
)

// Options configures a Client. Zero values fall back to sane defaults,
// except Rate where zero means unlimited.
type Options struct {
	Proxy   string
	Timeout time.Duration
	Retries int
	// Rate is the maximum number of requests per second.
	Rate float64
}

// Client is a rate limited HTTP client with retries on transient failures.
// It is safe for concurrent use.
type Client struct {
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

type Response struct {
	StatusCode int
	URL        string
	Body       string
	Title      string
}

// StatusError is returned by Get for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

func NewClient(opts Options) (*Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = opts.Retries
	if retryClient.RetryMax < 0 {
		retryClient.RetryMax = 0
	}
	retryClient.HTTPClient.Timeout = opts.Timeout
	if retryClient.HTTPClient.Timeout <= 0 {
		retryClient.HTTPClient.Timeout = 30 * time.Second
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", opts.Proxy, err)
		}
		if transport, ok := retryClient.HTTPClient.Transport.(*http.Transport); ok {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}

	return &Client{
		http:    retryClient,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Get fetches rawURL and returns the decoded body. Responses outside the 2xx
// range are reported as *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}

	res := &Response{
		StatusCode: resp.StatusCode,
		URL:        resp.Request.URL.String(),
		Body:       string(bodyBytes),
	}
	if title, ok := PageTitle(res.Body); ok {
		res.Title = title
	}
	return res, nil
}

// PageTitle returns the cleaned text of the first <title> element.
func PageTitle(body string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	title, ok := traverse(doc)
	if !ok {
		return "", false
	}
	title = strings.ReplaceAll(strings.ReplaceAll(title, "\n", " "), "\r", "")
	return strings.ToValidUTF8(strings.Join(strings.Fields(title), " "), ""), true
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}
