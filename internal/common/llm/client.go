package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"jobcrew/internal/common/errors"
	"jobcrew/internal/common/metrics"
)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	client *openai.Client
	config Config
	logger Logger
}

func NewClient(cfg Config, logger Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{}
	return &Client{
		client: openai.NewClientWithConfig(oc),
		config: cfg,
		logger: logger,
	}
}

func (c *Client) Model() string {
	return c.config.Model
}

// Chat sends one completion request, retrying transport errors, 429 and 5xx
// with exponential backoff.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	oreq := c.toOpenAIRequest(req)

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, contextError(ctx.Err())
			}
		}

		resp, err := c.send(ctx, oreq)
		if err == nil {
			if len(resp.Choices) == 0 {
				metrics.LLMRequests.WithLabelValues("failed").Inc()
				return nil, errors.NewLLMRequestFailedError(ErrEmptyResponse)
			}
			metrics.LLMRequests.WithLabelValues("success").Inc()
			metrics.LLMTokens.WithLabelValues("prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokens.WithLabelValues("completion").Add(float64(resp.Usage.CompletionTokens))
			return fromOpenAIResponse(&resp), nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, contextError(ctx.Err())
		}
		if !isRetryable(err) {
			break
		}
		c.logger.Warn("chat completion failed, retrying", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	if stderrors.Is(lastErr, context.DeadlineExceeded) {
		metrics.LLMRequests.WithLabelValues("timeout").Inc()
		return nil, errors.NewLLMTimeoutError(lastErr)
	}
	metrics.LLMRequests.WithLabelValues("failed").Inc()
	return nil, errors.NewLLMRequestFailedError(lastErr)
}

// contextError separates a user interrupt from a deadline.
func contextError(err error) *errors.StandardError {
	if stderrors.Is(err, context.Canceled) {
		metrics.LLMRequests.WithLabelValues("interrupted").Inc()
		return errors.NewInterruptedError(err)
	}
	metrics.LLMRequests.WithLabelValues("timeout").Inc()
	return errors.NewLLMTimeoutError(err)
}

func (c *Client) send(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}
	return c.client.CreateChatCompletion(ctx, req)
}

func isRetryable(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case stderrors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case stderrors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		// transport error
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}

func (c *Client) toOpenAIRequest(req ChatRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		messages = append(messages, msg)
	}

	oreq := openai.ChatCompletionRequest{
		Model:     c.config.Model,
		Messages:  messages,
		MaxTokens: c.config.MaxTokens,
	}
	for _, t := range req.Tools {
		oreq.Tools = append(oreq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return oreq
}

func fromOpenAIResponse(resp *openai.ChatCompletionResponse) *ChatResponse {
	choice := resp.Choices[0]
	out := &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
			Requests:         1,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

// String is used in debug logs.
func (r *ChatResponse) String() string {
	if len(r.ToolCalls) > 0 {
		return fmt.Sprintf("%d tool call(s)", len(r.ToolCalls))
	}
	return fmt.Sprintf("%d chars", len(r.Content))
}
