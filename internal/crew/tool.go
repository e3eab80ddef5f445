package crew

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"jobcrew/internal/common/errors"
	"jobcrew/internal/common/llm"
	"jobcrew/internal/common/metrics"
	"jobcrew/internal/common/validation"
)

// Tool is a capability an agent can invoke through the model's function calling.
type Tool interface {
	Name() string
	Description() string
	Schema() validation.JSONSchema
	Run(ctx context.Context, args json.RawMessage) (string, error)
}

// FunctionName turns a display name like "Job Search Tool" into the
// identifier sent to the model ("job_search_tool").
func FunctionName(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

type toolbox struct {
	tools  map[string]Tool
	defs   []llm.ToolDefinition
	logger Logger
}

func newToolbox(tools []Tool, logger Logger) *toolbox {
	tb := &toolbox{tools: make(map[string]Tool, len(tools)), logger: logger}
	for _, t := range tools {
		fn := FunctionName(t.Name())
		tb.tools[fn] = t
		tb.defs = append(tb.defs, llm.ToolDefinition{
			Name:        fn,
			Description: t.Description(),
			Parameters:  t.Schema().ToMap(),
		})
	}
	return tb
}

// invoke runs one tool call and returns the observation for the model.
// Failures become observations; they never abort the task.
func (tb *toolbox) invoke(ctx context.Context, call llm.ToolCall) string {
	ctx, span := tracer.Start(ctx, "crew.tool",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("tool", call.Name)),
	)
	defer span.End()

	start := time.Now()
	tool, ok := tb.tools[call.Name]
	if !ok {
		err := errors.NewToolNotFoundError(call.Name)
		span.SetStatus(codes.Error, err.Error())
		metrics.ToolCalls.WithLabelValues(call.Name, "not_found").Inc()
		return observationForError(err)
	}

	if res := validation.ValidateArguments(tool.Schema(), []byte(call.Arguments)); !res.Valid {
		err := errors.NewToolArgumentsInvalidError(tool.Name(), strings.Join(res.GetErrorMessages(), "; "))
		span.SetStatus(codes.Error, err.Error())
		metrics.ToolCalls.WithLabelValues(tool.Name(), "invalid_arguments").Inc()
		tb.logger.Warn("tool arguments rejected", map[string]interface{}{
			"tool":      tool.Name(),
			"arguments": call.Arguments,
			"errors":    res.GetErrorMessages(),
		})
		return observationForError(err)
	}

	out, err := tool.Run(ctx, json.RawMessage(call.Arguments))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ToolCalls.WithLabelValues(tool.Name(), "error").Inc()
		tb.logger.Warn("tool failed", map[string]interface{}{
			"tool":  tool.Name(),
			"error": err.Error(),
		})
		return observationForError(err)
	}

	metrics.ToolCalls.WithLabelValues(tool.Name(), "success").Inc()
	tb.logger.Debug("tool finished", map[string]interface{}{
		"tool":     tool.Name(),
		"duration": time.Since(start).String(),
		"chars":    len(out),
	})
	return out
}

func observationForError(err error) string {
	return fmt.Sprintf("Error: %s. Fix the arguments or try a different approach.", err.Error())
}
