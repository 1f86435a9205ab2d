package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const defaultMaxResponseSize int64 = 10 * 1024 * 1024 // 10MB

// Fetcher loads the text of a URL or local file.
type Fetcher interface {
	Get(ctx context.Context, source string) (string, error)
}

// HTTPFileFetcher fetches http(s) URLs and reads any other source as a file
// path relative to Dir. HTML responses are reduced to their visible text.
// Failures are returned as *FetchError.
type HTTPFileFetcher struct {
	Dir      string
	Client   *http.Client
	MaxBytes int64
}

// NewHTTPFileFetcher creates a fetcher. When blockPrivate is set, connections
// to private and loopback addresses are refused at dial time.
func NewHTTPFileFetcher(dir string, timeout time.Duration, maxBytes int64, blockPrivate bool) *HTTPFileFetcher {
	client := &http.Client{Timeout: timeout}
	if blockPrivate {
		client.Transport = NewSafeTransport()
	}
	return &HTTPFileFetcher{Dir: dir, Client: client, MaxBytes: maxBytes}
}

// IsURL reports whether source is fetched over HTTP.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Get implements Fetcher.
func (f *HTTPFileFetcher) Get(ctx context.Context, source string) (string, error) {
	source = strings.TrimSpace(source)
	var (
		text string
		err  error
	)
	if IsURL(source) {
		text, err = f.getURL(ctx, source)
	} else {
		text, err = f.readFile(source)
	}
	if err != nil {
		return "", &FetchError{Source: source, Err: err}
	}
	return text, nil
}

func (f *HTTPFileFetcher) getURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "miniagi/1.0")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, truncated, err := ReadBody(resp.Body, f.MaxBytes)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP Error %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	text := string(body)
	if ct := resp.Header.Get("Content-Type"); ct == "" || strings.Contains(ct, "html") {
		if text, err = HTMLText(text); err != nil {
			return "", err
		}
	}
	if truncated {
		text += "\n[response body truncated]"
	}
	return text, nil
}

func (f *HTTPFileFetcher) readFile(path string) (string, error) {
	if !filepath.IsAbs(path) && f.Dir != "" {
		path = filepath.Join(f.Dir, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	data, truncated, err := ReadBody(file, f.MaxBytes)
	if err != nil {
		return "", err
	}
	text := string(data)
	if truncated {
		text += "\n[file truncated]"
	}
	return text, nil
}

// ReadBody reads at most limit bytes from body.
// Returns (data, truncated, error).
func ReadBody(body io.Reader, limit int64) ([]byte, bool, error) {
	if limit <= 0 {
		limit = defaultMaxResponseSize
	}
	lr := io.LimitReader(body, limit+1) // one extra byte detects truncation
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

// HTMLText returns the visible text of an HTML document, one block per line.
func HTMLText(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var sb strings.Builder
	collectText(root, &sb)

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template", "svg":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
	if n.Type == html.ElementNode && isBlock(n.Data) {
		sb.WriteString("\n")
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6",
		"section", "article", "header", "footer", "pre", "blockquote", "title", "table", "ul", "ol":
		return true
	}
	return false
}
