package abilities

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html>
<head><title>Example Domain</title><style>body{color:red}</style></head>
<body>
  <script>var x = 1;</script>
  <h1>Example   Domain</h1>
  <div id="main"><p>This domain is for use in <b>examples</b>.</p></div>
  <p class="note extra">Second paragraph</p>
</body>
</html>`

const searchPage = `<html><body>
<div class="result"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&rut=abc">Go docs</a></div>
<div class="result"><a class="result__a" href="https://pkg.go.dev/">Packages</a></div>
<div class="result"><a class="result__a" href="javascript:void(0)">Broken</a></div>
<a href="https://ignored.example">not a result</a>
</body></html>`

func newWebServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	})
	mux.HandleFunc("/html/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang docs", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(searchPage))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBrowseWeb(t *testing.T) {
	srv := newWebServer(t)
	web := NewWeb(WebConfig{RetryCount: 0})
	ab := NewBrowseWebAbility(web)

	out, err := ab.Fn(context.Background(), "t1", map[string]any{"url": srv.URL + "/page"})
	require.NoError(t, err)
	assert.Contains(t, out, "Title: Example Domain")
	assert.Contains(t, out, "Example Domain\nThis domain is for use in examples.")
	assert.NotContains(t, out, "var x")
	assert.NotContains(t, out, "color:red")

	_, err = ab.Fn(context.Background(), "t1", map[string]any{"url": srv.URL + "/gone"})
	assert.ErrorContains(t, err, "status 404")

	_, err = ab.Fn(context.Background(), "t1", map[string]any{"url": "ftp://example.com"})
	assert.ErrorContains(t, err, "invalid url")
}

func TestBrowseWeb_Truncates(t *testing.T) {
	srv := newWebServer(t)
	web := NewWeb(WebConfig{MaxChars: 10})

	out, err := NewBrowseWebAbility(web).Fn(context.Background(), "t1", map[string]any{"url": srv.URL + "/page"})
	require.NoError(t, err)
	assert.Equal(t, "Title: Exa\n[truncated]", out)
}

func TestSearchWeb(t *testing.T) {
	srv := newWebServer(t)
	web := NewWeb(WebConfig{SearchURL: srv.URL + "/html/"})

	out, err := NewSearchWebAbility(web).Fn(context.Background(), "t1", map[string]any{"query": "golang docs"})
	require.NoError(t, err)

	var results []SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Equal(t, []SearchResult{
		{Title: "Go docs", URL: "https://go.dev/doc/"},
		{Title: "Packages", URL: "https://pkg.go.dev/"},
	}, results)

	_, err = NewSearchWebAbility(web).Fn(context.Background(), "t1", map[string]any{"query": "  "})
	assert.Error(t, err)
}

func TestScrapeWeb(t *testing.T) {
	srv := newWebServer(t)
	ab := NewScrapeWebAbility(NewWeb(WebConfig{}))
	url := srv.URL + "/page"

	tests := []struct {
		name    string
		element string
		want    string
		wantErr bool
	}{
		{name: "tag", element: "h1", want: "Example Domain"},
		{name: "angle brackets", element: "<p>", want: "This domain is for use in examples."},
		{name: "id", element: "#main", want: "This domain is for use in examples."},
		{name: "class", element: ".note", want: "Second paragraph"},
		{name: "missing", element: "table", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ab.Fn(context.Background(), "t1", map[string]any{"url": url, "html_element": tt.element})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	out, err := ab.Fn(context.Background(), "t1", map[string]any{"url": url})
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Example   Domain</h1>")
}

func TestResolveResultURL(t *testing.T) {
	assert.Equal(t, "https://a.example/x", resolveResultURL("//duckduckgo.com/l/?uddg=https%3A%2F%2Fa.example%2Fx"))
	assert.Equal(t, "http://b.example", resolveResultURL("http://b.example"))
	assert.Empty(t, resolveResultURL("/relative"))
	assert.Empty(t, resolveResultURL(""))
}
