package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWebfetch(t *testing.T, input WebFetchInput) (*Result, error) {
	t.Helper()
	raw, err := json.Marshal(input)
	require.NoError(t, err)
	return NewWebFetchTool("").Execute(context.Background(), raw, testContext())
}

func htmlServer(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebFetchTool_Identity(t *testing.T) {
	tool := NewWebFetchTool("/tmp")
	assert.Equal(t, "webfetch", tool.ID())
	assert.NotEmpty(t, tool.Description())
}

func TestWebFetchTool_PlainText(t *testing.T) {
	srv := htmlServer(t, "text/plain", "just some text")

	result, err := runWebfetch(t, WebFetchInput{URL: srv.URL, Format: "text"})
	require.NoError(t, err)
	assert.Equal(t, "just some text", result.Output)
	assert.Contains(t, result.Title, srv.URL)
}

func TestWebFetchTool_HTMLToText(t *testing.T) {
	srv := htmlServer(t, "text/html",
		`<html><head><script>evil()</script><style>p{}</style></head><body><p>visible words</p></body></html>`)

	result, err := runWebfetch(t, WebFetchInput{URL: srv.URL, Format: "text"})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "visible words")
	assert.NotContains(t, result.Output, "evil")
	assert.NotContains(t, result.Output, "p{}")
}

func TestWebFetchTool_HTMLToMarkdown(t *testing.T) {
	srv := htmlServer(t, "text/html",
		`<html><body><h1>Heading</h1><ul><li>item one</li></ul></body></html>`)

	result, err := runWebfetch(t, WebFetchInput{URL: srv.URL, Format: "markdown"})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "# Heading")
	assert.Contains(t, result.Output, "- item one")
}

func TestWebFetchTool_RawHTML(t *testing.T) {
	body := `<html><body><b>bold</b></body></html>`
	srv := htmlServer(t, "text/html", body)

	result, err := runWebfetch(t, WebFetchInput{URL: srv.URL, Format: "html"})
	require.NoError(t, err)
	assert.Equal(t, body, result.Output)
}

func TestWebFetchTool_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	_, err := runWebfetch(t, WebFetchInput{URL: srv.URL, Format: "text"})
	assert.ErrorContains(t, err, "404")
}

func TestWebFetchTool_InputValidation(t *testing.T) {
	_, err := runWebfetch(t, WebFetchInput{URL: "ftp://example.com", Format: "text"})
	assert.ErrorContains(t, err, "http:// or https://")

	_, err = runWebfetch(t, WebFetchInput{URL: "https://example.com", Format: "yaml"})
	assert.ErrorContains(t, err, "format must be")

	_, err = NewWebFetchTool("").Execute(context.Background(), json.RawMessage(`{bad`), testContext())
	assert.ErrorContains(t, err, "invalid input")
}

func TestHTMLToText(t *testing.T) {
	out, err := htmlToText(`<div>  spaced <span>content</span>  </div>`)
	require.NoError(t, err)
	assert.Contains(t, out, "spaced")
	assert.Contains(t, out, "content")
}

func TestHTMLToMarkdown(t *testing.T) {
	out, err := htmlToMarkdown(`<h2>Title</h2><p>A <em>styled</em> paragraph.</p>`)
	require.NoError(t, err)
	assert.Contains(t, out, "## Title")
	assert.Contains(t, out, "*styled*")
}

func TestRenderBody_PassthroughForNonHTML(t *testing.T) {
	out, err := renderBody("# already markdown", "text/markdown", "markdown")
	require.NoError(t, err)
	assert.Equal(t, "# already markdown", out)
}
