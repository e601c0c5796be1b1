package fetch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"pulse/internal/config"
	"pulse/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func testConfig() config.FetchConfig {
	return config.FetchConfig{
		Enabled:          true,
		MaxResponseBytes: 512 * 1024,
		TimeoutSeconds:   5,
		UserAgent:        "Pulse/test",
	}
}

func TestFetchTool_Text(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Pulse/test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><head><style>.x{}</style></head><body><h1>Hello</h1><p>World</p></body></html>")
	}))
	defer srv.Close()

	tool := NewFetchTool(testConfig(), testLogger(t))
	out, err := tool.Execute(fmt.Sprintf(`{"url":%q}`, srv.URL))
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, float64(200), result["status"])
	assert.Contains(t, result["content"], "Hello")
	assert.NotContains(t, result["content"], "<h1>")
}

func TestFetchTool_Markdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Title</h1><nav>skip me</nav><p>Body text</p></body></html>")
	}))
	defer srv.Close()

	tool := NewFetchTool(testConfig(), testLogger(t))
	out, err := tool.Execute(fmt.Sprintf(`{"url":%q,"format":"markdown"}`, srv.URL))
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	content, _ := result["content"].(string)
	assert.Contains(t, content, "# Title")
	assert.NotContains(t, content, "skip me")
}

func TestFetchTool_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tool := NewFetchTool(testConfig(), testLogger(t))
	out, err := tool.Execute(fmt.Sprintf(`{"url":%q,"format":"json"}`, srv.URL))
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	parsed, ok := result["json"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, parsed["ok"])
}

func TestFetchTool_PostBody(t *testing.T) {
	var gotMethod, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tool := NewFetchTool(testConfig(), testLogger(t))
	_, err := tool.Execute(fmt.Sprintf(`{"url":%q,"method":"POST","body":"{\"a\":1}"}`, srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "application/json", gotContentType)
}

func TestFetchTool_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "0123456789abcdef")
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxResponseBytes = 8
	tool := NewFetchTool(cfg, testLogger(t))
	_, err := tool.Execute(fmt.Sprintf(`{"url":%q}`, srv.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestFetchTool_Validation(t *testing.T) {
	tool := NewFetchTool(testConfig(), testLogger(t))

	_, err := tool.Execute(`{}`)
	assert.Error(t, err)

	_, err = tool.Execute(`{"url":"ftp://example.com"}`)
	assert.Error(t, err)

	disabled := testConfig()
	disabled.Enabled = false
	toolOff := NewFetchTool(disabled, testLogger(t))
	_, err = toolOff.Execute(`{"url":"https://example.com"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestFetchTool_NoRedirectFollow(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "final")
	}))
	defer target.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer srv.Close()

	tool := NewFetchTool(testConfig(), testLogger(t))
	out, err := tool.Execute(fmt.Sprintf(`{"url":%q,"followRedirects":false}`, srv.URL))
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, float64(http.StatusFound), result["status"])
}
