// Package crew runs a fixed list of tasks, each handled by an agent backed by
// a chat model with function-calling tools.
package crew

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"jobcrew/internal/common/errors"
	"jobcrew/internal/common/llm"
	"jobcrew/internal/common/metrics"
)

var tracer = otel.Tracer("jobcrew/crew")

type Process string

const Sequential Process = "sequential"

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// ChatModel is the subset of the llm client the crew needs.
type ChatModel interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

type Crew struct {
	Agents  []*Agent
	Tasks   []*Task
	Process Process
	// Verbose logs agent progress at info level instead of debug.
	Verbose       bool
	MaxIterations int

	LLM    ChatModel
	Logger Logger
}

type CrewOutput struct {
	Raw   string       `json:"raw"`
	Tasks []TaskOutput `json:"tasks_output"`
	Usage llm.Usage    `json:"token_usage"`
}

// Validate checks the crew wiring without calling the model.
func (c *Crew) Validate() error {
	if c.Process != Sequential {
		return errors.NewInvalidCrewConfigError(fmt.Sprintf("process %q is not supported", c.Process))
	}
	if len(c.Tasks) == 0 {
		return errors.NewInvalidCrewConfigError("crew has no tasks")
	}
	if c.LLM == nil {
		return errors.NewInvalidCrewConfigError("crew has no language model")
	}
	seen := make(map[*Task]bool, len(c.Tasks))
	for i, t := range c.Tasks {
		if t.Agent == nil {
			return errors.NewInvalidCrewConfigError(fmt.Sprintf("task %d (%s) has no agent", i+1, t.displayName()))
		}
		if t.Agent.AllowDelegation {
			return errors.NewInvalidCrewConfigError(fmt.Sprintf("agent %q: delegation is not supported", t.Agent.Role))
		}
		for _, ctxTask := range t.Context {
			if !seen[ctxTask] {
				return errors.NewInvalidCrewConfigError(fmt.Sprintf("task %s: context task must run before it", t.displayName()))
			}
		}
		seen[t] = true
	}
	return nil
}

// Kickoff interpolates inputs into every agent and task, then runs the tasks
// in order. The first failing task aborts the crew.
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]string) (*CrewOutput, error) {
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if inputs == nil {
		inputs = map[string]string{}
	}

	tasks, err := c.prepare(inputs)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "crew.kickoff")
	defer span.End()
	span.SetAttributes(attribute.Int("tasks", len(tasks)))

	out := &CrewOutput{}
	// keyed by the caller's *Task so Context pointers resolve
	results := make(map[*Task]string, len(tasks))

	for i, task := range tasks {
		original := c.Tasks[i]

		taskOut, err := c.runTask(ctx, task, c.buildContext(original, results), &out.Usage)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("task %q failed: %w", task.displayName(), err)
		}

		results[original] = taskOut.Raw
		out.Tasks = append(out.Tasks, *taskOut)
		out.Raw = taskOut.Raw
	}

	return out, nil
}

func (c *Crew) prepare(inputs map[string]string) ([]*Task, error) {
	agents := make(map[*Agent]*Agent, len(c.Agents))
	resolve := func(a *Agent) (*Agent, error) {
		if ia, ok := agents[a]; ok {
			return ia, nil
		}
		ia, err := a.interpolate(inputs)
		if err != nil {
			return nil, err
		}
		agents[a] = ia
		return ia, nil
	}
	for _, a := range c.Agents {
		if _, err := resolve(a); err != nil {
			return nil, err
		}
	}

	tasks := make([]*Task, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		a, err := resolve(t.Agent)
		if err != nil {
			return nil, err
		}
		it, err := t.interpolate(inputs, a)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, it)
	}
	return tasks, nil
}

func (c *Crew) buildContext(task *Task, results map[*Task]string) string {
	var parts []string
	if task.Context == nil {
		for _, prev := range c.Tasks {
			if prev == task {
				break
			}
			parts = append(parts, results[prev])
		}
	} else {
		for _, ct := range task.Context {
			parts = append(parts, results[ct])
		}
	}
	return strings.Join(parts, contextDivider)
}

func (c *Crew) runTask(ctx context.Context, task *Task, taskContext string, usage *llm.Usage) (*TaskOutput, error) {
	ctx, span := tracer.Start(ctx, "crew.task")
	defer span.End()
	span.SetAttributes(
		attribute.String("task", task.displayName()),
		attribute.String("agent", task.Agent.Role),
	)

	name := task.displayName()
	start := time.Now()
	c.log("task started", map[string]interface{}{
		"task":  name,
		"agent": task.Agent.Role,
	})

	raw, err := c.executeTask(ctx, task, taskContext, usage)
	metrics.TaskDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TaskRuns.WithLabelValues(name, "failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if task.OutputFile != "" {
		if err := WriteOutputFile(ctx, task.OutputFile, raw); err != nil {
			metrics.TaskRuns.WithLabelValues(name, "failed").Inc()
			return nil, err
		}
	}

	metrics.TaskRuns.WithLabelValues(name, "completed").Inc()
	c.log("task completed", map[string]interface{}{
		"task":     name,
		"agent":    task.Agent.Role,
		"duration": time.Since(start).String(),
		"chars":    len(raw),
	})

	return &TaskOutput{
		Name:           task.Name,
		Description:    task.Description,
		ExpectedOutput: task.ExpectedOutput,
		Agent:          task.Agent.Role,
		Raw:            raw,
		OutputFile:     task.OutputFile,
	}, nil
}

func (c *Crew) log(msg string, fields map[string]interface{}) {
	if c.Verbose {
		c.Logger.Info(msg, fields)
		return
	}
	c.Logger.Debug(msg, fields)
}

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{}) {}
func (nopLogger) Info(string, map[string]interface{})  {}
func (nopLogger) Warn(string, map[string]interface{})  {}
func (nopLogger) Error(string, map[string]interface{}) {}
