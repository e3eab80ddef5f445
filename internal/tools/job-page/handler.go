// internal/tools/job-page/handler.go
package jobpage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"jobcrew/internal/common/errors"
	jchttp "jobcrew/internal/common/http"
	"jobcrew/internal/common/validation"
)

const (
	ToolName = "Job Page Reader"

	toolDescription = "Read the text of a single job posting page. Pass the absolute http(s) 'url' of the " +
		"posting, taken from the job search results."

	maxBodyBytes = 2 << 20
)

var (
	// removed before text extraction
	noiseSelectors = "script, style, noscript, svg, iframe, nav, header, footer, form, aside"
	// tried in order; the first match with enough text wins
	contentSelectors = []string{
		"main", "article", "[role=main]", "#content", ".job-description",
		"#job-description", ".posting", ".content",
	}
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	spacesRe     = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Input struct {
	URL string `json:"url"`
}

// Tool fetches a job posting and returns its readable text.
type Tool struct {
	config *Config
	client *jchttp.Client
	logger Logger
}

func NewTool(config *Config, log Logger) *Tool {
	return &Tool{
		config: config,
		client: jchttp.NewClient(config.Timeout,
			jchttp.WithUserAgent(config.UserAgent),
			jchttp.WithRateLimit(config.RateLimit, config.Burst),
		),
		logger: log.With(map[string]interface{}{
			"tool": ToolName,
		}),
	}
}

func (t *Tool) Name() string        { return ToolName }
func (t *Tool) Description() string { return toolDescription }

func (t *Tool) Schema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"url": {
				Type:        "string",
				Description: "Absolute http or https URL of the job posting",
				Pattern:     "^https?://",
			},
		},
		Required: []string{"url"},
	}
}

func (t *Tool) Run(ctx context.Context, args json.RawMessage) (string, error) {
	var input Input
	if err := json.Unmarshal(args, &input); err != nil {
		return "", errors.NewToolArgumentsInvalidError(ToolName, err.Error())
	}
	return t.Read(ctx, input.URL)
}

// Read returns the title and main text of the page at rawURL.
func (t *Tool) Read(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !validation.ValidateURL(rawURL) {
		return "", errors.NewPageFetchFailedError(rawURL, fmt.Errorf("only absolute http(s) URLs are supported"))
	}

	if t.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", errors.NewPageFetchFailedError(rawURL, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	res, err := t.client.Do(req)
	if err != nil {
		return "", errors.NewPageFetchFailedError(rawURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", errors.NewPageFetchFailedError(rawURL, fmt.Errorf("status %d", res.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return "", errors.NewPageFetchFailedError(rawURL, fmt.Errorf("parse html: %w", err))
	}

	title := cleanText(doc.Find("title").First().Text())
	if h1 := cleanText(doc.Find("h1").First().Text()); h1 != "" {
		title = h1
	}

	text := extractText(doc)
	if text == "" {
		return "", errors.NewPageFetchFailedError(rawURL, fmt.Errorf("page has no readable text"))
	}
	text = truncate(text, t.config.MaxChars)

	t.logger.Debug("job page read", map[string]interface{}{
		"url":   rawURL,
		"chars": len(text),
	})

	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "Title: %s\n", title)
	}
	fmt.Fprintf(&b, "URL: %s\n\n%s", rawURL, text)
	return b.String(), nil
}

func extractText(doc *goquery.Document) string {
	doc.Find(noiseSelectors).Remove()

	for _, sel := range contentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			if text := blockText(s); utf8.RuneCountInString(text) >= 200 {
				return text
			}
		}
	}
	return blockText(doc.Find("body"))
}

// blockText joins the text of block elements with newlines so list items and
// paragraphs stay on separate lines.
func blockText(s *goquery.Selection) string {
	s.Find("br").ReplaceWithHtml("\n")
	s.Find("p, li, h1, h2, h3, h4, h5, h6, div, tr, section").Each(func(_ int, el *goquery.Selection) {
		el.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(s.Text(), "\n") {
		line = strings.TrimSpace(spacesRe.ReplaceAllString(line, " "))
		lines = append(lines, line)
	}
	text := strings.Join(lines, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func cleanText(s string) string {
	return strings.TrimSpace(spacesRe.ReplaceAllString(strings.ReplaceAll(s, "\n", " "), " "))
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxChars]) + "\n\n[truncated]"
}
