// internal/tools/web-search/handler.go
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"jobcrew/internal/common/errors"
	jchttp "jobcrew/internal/common/http"
	"jobcrew/internal/common/metrics"
	"jobcrew/internal/common/validation"
)

const (
	ToolName = "Job Search Tool"

	toolDescription = "Search the web for job listings. The 'query' argument must be a single plain-text " +
		"string with the position, location, salary expectations and other preferences in one line, " +
		"e.g. \"Senior Python Developer remote full-time salary $100000-$130000\". Do not pass a JSON object."
)

// jobBoards are hosts whose results are ranked above generic pages.
var jobBoards = []string{
	"linkedin.com/jobs", "indeed.", "glassdoor.", "greenhouse.io", "lever.co",
	"wellfound.com", "ziprecruiter.com", "monster.", "workable.com", "ashbyhq.com",
	"smartrecruiters.com", "dice.com", "remoteok.com", "weworkremotely.com", "builtin.com",
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Tool searches job listings through the Serper API.
type Tool struct {
	config *Config
	client *jchttp.Client
	cache  *resultCache
	logger Logger
}

// NewTool builds the search tool. redisClient may be nil to disable caching.
func NewTool(config *Config, redisClient *redis.Client, log Logger) *Tool {
	t := &Tool{
		config: config,
		client: jchttp.NewClient(config.Timeout,
			jchttp.WithUserAgent(config.UserAgent),
			jchttp.WithRateLimit(config.RateLimit, config.Burst),
		),
		logger: log.With(map[string]interface{}{
			"tool": ToolName,
		}),
	}
	if redisClient != nil && config.CacheTTL > 0 {
		t.cache = &resultCache{client: redisClient, ttl: config.CacheTTL}
	}
	return t
}

func (t *Tool) Name() string        { return ToolName }
func (t *Tool) Description() string { return toolDescription }

func (t *Tool) Schema() validation.JSONSchema {
	minLen := 1
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"query": {
				Type:        "string",
				Description: "Plain-text job search query",
				MinLength:   &minLen,
			},
		},
		Required: []string{"query"},
	}
}

func (t *Tool) Run(ctx context.Context, args json.RawMessage) (string, error) {
	var input Input
	if err := json.Unmarshal(args, &input); err != nil {
		return "", errors.NewToolArgumentsInvalidError(ToolName, err.Error())
	}

	sources, err := t.Search(ctx, input.Query)
	if err != nil {
		return "", err
	}
	return render(input.Query, sources), nil
}

// Search runs "Search for '<query>' job listings" and returns ranked results.
func (t *Tool) Search(ctx context.Context, query string) ([]Source, error) {
	searchQuery := fmt.Sprintf("Search for '%s' job listings", strings.TrimSpace(query))
	key := cacheKey(searchQuery, t.config.MaxResults)

	if t.cache != nil {
		sources, hit, err := t.cache.get(ctx, key)
		switch {
		case err != nil:
			metrics.SearchCache.WithLabelValues("error").Inc()
			t.logger.Warn("search cache read failed", map[string]interface{}{"error": err.Error()})
		case hit:
			metrics.SearchCache.WithLabelValues("hit").Inc()
			t.logger.Debug("search cache hit", map[string]interface{}{"query": searchQuery})
			return sources, nil
		default:
			metrics.SearchCache.WithLabelValues("miss").Inc()
		}
	}

	sources, err := t.execute(ctx, searchQuery)
	if err != nil {
		return nil, err
	}

	if t.cache != nil {
		if err := t.cache.set(ctx, key, sources); err != nil {
			t.logger.Warn("search cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return sources, nil
}

func (t *Tool) execute(ctx context.Context, searchQuery string) ([]Source, error) {
	if t.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()
	}

	body, _ := json.Marshal(serperRequest{Q: searchQuery, Num: t.config.MaxResults})
	endpoint := strings.TrimRight(t.config.SearchAPIBaseURL, "/") + "/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewWebSearchFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", t.config.SearchAPIKey)

	resp, err := t.client.DoWithContext(ctx, req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, errors.NewWebSearchTimeoutError(searchQuery)
		}
		return nil, errors.NewWebSearchFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewWebSearchFailedError(fmt.Errorf("search API returned %d", resp.StatusCode))
	}

	var apiResponse serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		if isTimeout(ctx, err) {
			return nil, errors.NewWebSearchTimeoutError(searchQuery)
		}
		return nil, errors.NewWebSearchFailedError(fmt.Errorf("decode response: %w", err))
	}

	sources := t.processResults(apiResponse)

	t.logger.Info("web search completed", map[string]interface{}{
		"query":       searchQuery,
		"resultCount": len(sources),
	})
	return sources, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

func (t *Tool) processResults(apiResponse serperResponse) []Source {
	seen := make(map[string]bool)
	var sources []Source

	for _, item := range apiResponse.Organic {
		link := strings.TrimSpace(item.Link)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true

		relevance := 1.0
		if isJobBoard(link) {
			relevance += 0.5
		}
		title := strings.ToLower(item.Title)
		if strings.Contains(title, "job") || strings.Contains(title, "hiring") || strings.Contains(title, "career") {
			relevance += 0.1
		}

		sources = append(sources, Source{
			URL:       link,
			Title:     item.Title,
			Snippet:   item.Snippet,
			Date:      item.Date,
			Relevance: relevance,
		})
	}

	// stable keeps Serper's order among equals
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Relevance > sources[j].Relevance
	})

	if len(sources) > t.config.MaxResults {
		sources = sources[:t.config.MaxResults]
	}
	return sources
}

func isJobBoard(link string) bool {
	l := strings.ToLower(link)
	for _, b := range jobBoards {
		if strings.Contains(l, b) {
			return true
		}
	}
	return false
}

func render(query string, sources []Source) string {
	if len(sources) == 0 {
		return fmt.Sprintf("No job listings found for '%s'.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for '%s':\n\n", query)
	for _, s := range sources {
		fmt.Fprintf(&b, "Title: %s\nLink: %s\n", s.Title, s.URL)
		if s.Date != "" {
			fmt.Fprintf(&b, "Date: %s\n", s.Date)
		}
		fmt.Fprintf(&b, "Snippet: %s\n---\n", s.Snippet)
	}
	return b.String()
}
