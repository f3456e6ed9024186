package abilities

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// WebConfig configures the web abilities.
type WebConfig struct {
	Timeout    time.Duration
	UserAgent  string
	MaxChars   int    // truncate page output to this many characters
	SearchURL  string // DuckDuckGo HTML endpoint
	MaxResults int
	RetryCount int
}

// DefaultWebConfig returns the settings used when none are given.
func DefaultWebConfig() WebConfig {
	return WebConfig{
		Timeout:    30 * time.Second,
		UserAgent:  "Mozilla/5.0 (compatible; asimov-agent/1.0)",
		MaxChars:   20000,
		SearchURL:  "https://html.duckduckgo.com/html/",
		MaxResults: 8,
		RetryCount: 2,
	}
}

// Web fetches and parses pages for the web abilities.
type Web struct {
	client *resty.Client
	cfg    WebConfig
}

// NewWeb builds the HTTP client shared by the web abilities.
func NewWeb(cfg WebConfig) *Web {
	def := DefaultWebConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if cfg.SearchURL == "" {
		cfg.SearchURL = def.SearchURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
	})

	return &Web{client: client, cfg: cfg}
}

func (w *Web) get(ctx context.Context, rawURL string, query map[string]string) (*html.Node, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: only absolute http(s) urls are supported", rawURL)
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode())
	}

	doc, err := html.Parse(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

func (w *Web) truncate(s string) string {
	r := []rune(s)
	if len(r) <= w.cfg.MaxChars {
		return s
	}
	return string(r[:w.cfg.MaxChars]) + "\n[truncated]"
}

// NewBrowseWebAbility returns the readable text of a page.
func NewBrowseWebAbility(w *Web) Ability {
	return Ability{
		Name:        "browse_web",
		Description: "Browse to a specific URL",
		Parameters: []Parameter{
			{Name: "url", Description: "URL to browse to", Type: "string", Required: true},
		},
		OutputType: "str",
		Category:   "browsing",
		Fn: func(ctx context.Context, _ string, args map[string]any) (string, error) {
			doc, err := w.get(ctx, stringArg(args, "url"), nil)
			if err != nil {
				return "", err
			}
			var parts []string
			if title := findFirst(doc, func(n *html.Node) bool { return n.DataAtom == atom.Title }); title != nil {
				if t := textOf(title); t != "" {
					parts = append(parts, "Title: "+t)
				}
			}
			body := findFirst(doc, func(n *html.Node) bool { return n.DataAtom == atom.Body })
			if body == nil {
				body = doc
			}
			parts = append(parts, textOf(body))
			return w.truncate(strings.Join(parts, "\n\n")), nil
		},
	}
}

// SearchResult is one hit returned by search_web.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// NewSearchWebAbility queries DuckDuckGo's HTML endpoint and returns result links.
func NewSearchWebAbility(w *Web) Ability {
	return Ability{
		Name:        "search_web",
		Description: "Search the web for a specific query",
		Parameters: []Parameter{
			{Name: "query", Description: "Query to search for", Type: "string", Required: true},
		},
		OutputType: "list[str]",
		Category:   "browsing",
		Fn: func(ctx context.Context, _ string, args map[string]any) (string, error) {
			query := strings.TrimSpace(stringArg(args, "query"))
			if query == "" {
				return "", fmt.Errorf("query is empty")
			}
			doc, err := w.get(ctx, w.cfg.SearchURL, map[string]string{"q": query})
			if err != nil {
				return "", err
			}

			results := make([]SearchResult, 0, w.cfg.MaxResults)
			walk(doc, func(n *html.Node) bool {
				if len(results) >= w.cfg.MaxResults {
					return false
				}
				if n.DataAtom == atom.A && hasClass(n, "result__a") {
					if href := resolveResultURL(attr(n, "href")); href != "" {
						results = append(results, SearchResult{Title: textOf(n), URL: href})
					}
				}
				return true
			})

			out, err := json.Marshal(results)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// NewScrapeWebAbility returns the text of the first element matching
// html_element, or the whole document when no element is given. The
// selector is a tag name, #id or .class.
func NewScrapeWebAbility(w *Web) Ability {
	return Ability{
		Name:        "scrape_web",
		Description: "Scrape data from a specific URL",
		Parameters: []Parameter{
			{Name: "url", Description: "URL to scrape data from", Type: "string", Required: true},
			{Name: "html_element", Description: "Specific HTML element to scrape", Type: "string"},
		},
		OutputType: "dict",
		Category:   "browsing",
		Fn: func(ctx context.Context, _ string, args map[string]any) (string, error) {
			doc, err := w.get(ctx, stringArg(args, "url"), nil)
			if err != nil {
				return "", err
			}

			selector := strings.TrimSpace(stringArg(args, "html_element"))
			if selector == "" {
				var buf bytes.Buffer
				if err := html.Render(&buf, doc); err != nil {
					return "", err
				}
				return w.truncate(buf.String()), nil
			}

			el := findFirst(doc, matcherFor(selector))
			if el == nil {
				return "", fmt.Errorf("no %q element found", selector)
			}
			return w.truncate(textOf(el)), nil
		},
	}
}

func matcherFor(selector string) func(*html.Node) bool {
	switch {
	case strings.HasPrefix(selector, "#"):
		id := selector[1:]
		return func(n *html.Node) bool { return n.Type == html.ElementNode && attr(n, "id") == id }
	case strings.HasPrefix(selector, "."):
		class := selector[1:]
		return func(n *html.Node) bool { return n.Type == html.ElementNode && hasClass(n, class) }
	default:
		tag := strings.ToLower(strings.Trim(selector, "<>/ "))
		return func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == tag }
	}
}

// resolveResultURL unwraps DuckDuckGo's redirect links.
func resolveResultURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
