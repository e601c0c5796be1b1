// Package fetch implements the web_fetch tool: HTTP retrieval with
// HTML-to-text and HTML-to-Markdown conversion for model consumption.
package fetch

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"pulse/internal/config"
	"pulse/internal/logger"
)

type FetchTool struct {
	cfg    config.FetchConfig
	logger *logger.Logger
}

type FetchArgs struct {
	URL             string            `json:"url"`
	Format          string            `json:"format"`
	Headers         map[string]string `json:"headers"`
	Method          string            `json:"method"`
	Body            string            `json:"body"`
	FollowRedirects *bool             `json:"followRedirects"`
	Timeout         *int              `json:"timeout"`
}

func NewFetchTool(cfg config.FetchConfig, log *logger.Logger) *FetchTool {
	return &FetchTool{
		cfg:    cfg,
		logger: log,
	}
}

func (t *FetchTool) Name() string {
	return "web_fetch"
}

func (t *FetchTool) Description() string {
	return "Fetch content from a URL. Returns formatted text with metadata."
}

func (t *FetchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to fetch. Must start with http:// or https://",
			},
			"format": map[string]any{
				"type":        "string",
				"enum":        []string{"text", "html", "markdown", "json"},
				"default":     "text",
				"description": "Output format: 'text' (strips HTML tags), 'html' (raw HTML), 'markdown' (converts HTML to Markdown), or 'json' (parse JSON response)",
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Optional HTTP headers. Example: {\"Authorization\": \"Bearer token\"}",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
			"followRedirects": map[string]any{
				"type":        "boolean",
				"default":     true,
				"description": "Follow HTTP redirects. Set to false to stop at the first redirect and return the redirect URL",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds (1-120). Overrides the default configuration. Omit to use default timeout",
				"minimum":     1,
				"maximum":     120,
			},
			"method": map[string]any{
				"type":        "string",
				"enum":        []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
				"default":     "GET",
				"description": "HTTP method to use",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body (for POST, PUT, PATCH methods)",
			},
		},
		"required": []any{"url"},
	}
}

func (t *FetchTool) Execute(args string) (string, error) {
	var fetchArgs FetchArgs
	if err := json.Unmarshal([]byte(args), &fetchArgs); err != nil {
		return "", fmt.Errorf("failed to parse arguments: %w", err)
	}

	if fetchArgs.URL == "" {
		return "", fmt.Errorf("url is required")
	}
	if fetchArgs.Format == "" {
		fetchArgs.Format = "text"
	}
	if fetchArgs.Method == "" {
		fetchArgs.Method = "GET"
	}
	if fetchArgs.Body != "" && (fetchArgs.Method == "GET" || fetchArgs.Method == "HEAD" || fetchArgs.Method == "DELETE") {
		fetchArgs.Body = ""
	}

	if !t.cfg.Enabled {
		return "", fmt.Errorf("web_fetch tool is disabled in configuration")
	}

	if !strings.HasPrefix(fetchArgs.URL, "http://") && !strings.HasPrefix(fetchArgs.URL, "https://") {
		return "", fmt.Errorf("url must start with http:// or https://")
	}

	timeout := time.Duration(t.cfg.TimeoutSeconds) * time.Second
	if fetchArgs.Timeout != nil {
		if *fetchArgs.Timeout < 1 {
			return "", fmt.Errorf("timeout must be at least 1 second")
		}
		if *fetchArgs.Timeout > 120 {
			return "", fmt.Errorf("timeout cannot exceed 120 seconds")
		}
		timeout = time.Duration(*fetchArgs.Timeout) * time.Second
	}

	client := &http.Client{
		Timeout: timeout,
	}

	if fetchArgs.FollowRedirects != nil && !*fetchArgs.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var bodyReader io.Reader
	if fetchArgs.Body != "" {
		bodyReader = strings.NewReader(fetchArgs.Body)
	}

	req, err := http.NewRequest(fetchArgs.Method, fetchArgs.URL, bodyReader)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", t.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")
	if fetchArgs.Body != "" {
		contentTypeSet := false
		for name := range fetchArgs.Headers {
			if strings.EqualFold(name, "content-type") {
				contentTypeSet = true
				break
			}
		}
		if !contentTypeSet {
			req.Header.Set("Content-Type", "application/json")
		}
	}

	for name, value := range fetchArgs.Headers {
		req.Header.Set(name, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.ContentLength > t.cfg.MaxResponseBytes {
		return "", fmt.Errorf("response too large: %d bytes exceeds %d bytes limit",
			resp.ContentLength, t.cfg.MaxResponseBytes)
	}

	limitReader := io.LimitReader(resp.Body, t.cfg.MaxResponseBytes)
	body, err := io.ReadAll(limitReader)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if int64(len(body)) >= t.cfg.MaxResponseBytes {
		return "", fmt.Errorf("response truncated: exceeds %d bytes limit", t.cfg.MaxResponseBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	content := string(body)

	if fetchArgs.Format == "text" && strings.Contains(contentType, "text/html") {
		content = t.stripHTML(content)
	}

	if fetchArgs.Format == "markdown" && strings.Contains(contentType, "text/html") {
		content = t.htmlToMarkdown(content)
	}

	result := map[string]any{
		"url":         fetchArgs.URL,
		"status":      resp.StatusCode,
		"statusText":  resp.Status,
		"contentType": contentType,
		"length":      len(content),
		"content":     content,
	}

	if fetchArgs.Format == "json" {
		var jsonData any
		if err := json.Unmarshal(body, &jsonData); err != nil {
			return "", fmt.Errorf("failed to parse JSON response: %w", err)
		}
		result["json"] = jsonData
	}

	headers := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	result["headers"] = headers

	resultJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	return string(resultJSON), nil
}

func (t *FetchTool) stripHTML(html string) string {
	reScript := regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`)
	html = reScript.ReplaceAllString(html, "")

	reStyle := regexp.MustCompile(`(?i)<style[^>]*>.*?</style>`)
	html = reStyle.ReplaceAllString(html, "")

	reTags := regexp.MustCompile(`<[^>]+>`)
	html = reTags.ReplaceAllString(html, "\n")

	reSpace := regexp.MustCompile(`\s+`)
	html = reSpace.ReplaceAllString(html, " ")

	return strings.TrimSpace(html)
}

func (t *FetchTool) htmlToMarkdown(html string) string {
	opts := &md.Options{
		HeadingStyle:    "atx",
		CodeBlockStyle:  "fenced",
		EmDelimiter:     "*",
		StrongDelimiter: "**",
	}

	converter := md.NewConverter("", true, opts)

	converter.Keep("a", "img")

	empty := ""
	converter.AddRules(md.Rule{
		Filter: []string{"nav", "footer", "aside", "script", "style"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			return &empty
		},
	})

	markdown, err := converter.ConvertString(html)
	if err != nil {
		t.logger.Error("failed to convert HTML to Markdown", err)
		return ""
	}

	reCleanNewlines := regexp.MustCompile(`\n{3,}`)
	markdown = reCleanNewlines.ReplaceAllString(markdown, "\n\n")

	return strings.TrimSpace(markdown)
}
