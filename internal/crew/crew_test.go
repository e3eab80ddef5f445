package crew

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"jobcrew/internal/common/errors"
	"jobcrew/internal/common/llm"
	"jobcrew/internal/common/validation"
)

// ==========================
// Test doubles
// ==========================

type TestLogger struct {
	t *testing.T
}

func (l *TestLogger) Debug(msg string, fields map[string]interface{}) {
	l.t.Logf("[DEBUG] %s %v", msg, fields)
}
func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("[INFO] %s %v", msg, fields)
}
func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("[WARN] %s %v", msg, fields)
}
func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("[ERROR] %s %v", msg, fields)
}

// scriptedModel answers each request with the next scripted response.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*llm.ChatResponse
	err       error
	requests  []llm.ChatRequest
}

func (m *scriptedModel) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &llm.ChatResponse{Content: "default answer", Usage: llm.Usage{TotalTokens: 1, Requests: 1}}, nil
	}
	r := m.responses[0]
	m.responses = m.responses[1:]
	return r, nil
}

func answer(s string) *llm.ChatResponse {
	return &llm.ChatResponse{Content: s, Usage: llm.Usage{PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3, Requests: 1}}
}

func toolCall(id, name, args string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ToolCalls: []llm.ToolCall{{ID: id, Name: name, Arguments: args}},
		Usage:     llm.Usage{TotalTokens: 1, Requests: 1},
	}
}

type echoTool struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (e *echoTool) Name() string        { return "Echo Tool" }
func (e *echoTool) Description() string { return "Echoes the query back." }
func (e *echoTool) Schema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:       "object",
		Properties: map[string]validation.Property{"query": {Type: "string"}},
		Required:   []string{"query"},
	}
}
func (e *echoTool) Run(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	_ = json.Unmarshal(args, &in)
	e.mu.Lock()
	e.calls = append(e.calls, in.Query)
	e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	return "echo: " + in.Query, nil
}

func lastUserMessage(req llm.ChatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

func newTestCrew(t *testing.T, model ChatModel, tasks ...*Task) *Crew {
	agents := []*Agent{}
	for _, task := range tasks {
		agents = append(agents, task.Agent)
	}
	return &Crew{
		Agents:  agents,
		Tasks:   tasks,
		Process: Sequential,
		LLM:     model,
		Logger:  &TestLogger{t: t},
	}
}

// ==========================
// Kickoff
// ==========================

func TestKickoff_ContextChaining(t *testing.T) {
	agent := &Agent{Role: "Researcher", Goal: "find {position}", Backstory: "expert"}
	first := &Task{Name: "first", Description: "research {position}", ExpectedOutput: "list", Agent: agent}
	second := &Task{Name: "second", Description: "analyse", ExpectedOutput: "analysis", Agent: agent}
	third := &Task{Name: "third", Description: "report", ExpectedOutput: "report", Agent: agent, Context: []*Task{second}}

	model := &scriptedModel{responses: []*llm.ChatResponse{answer("OUT-1"), answer("OUT-2"), answer("OUT-3")}}
	c := newTestCrew(t, model, first, second, third)

	out, err := c.Kickoff(context.Background(), map[string]string{"position": "Go Engineer"})
	require.NoError(t, err)

	require.Len(t, model.requests, 3)
	assert.Contains(t, model.requests[0].Messages[0].Content, "find Go Engineer")
	assert.Contains(t, lastUserMessage(model.requests[0]), "research Go Engineer")
	assert.NotContains(t, lastUserMessage(model.requests[0]), "context you're working with")

	// nil context: every earlier output
	assert.Contains(t, lastUserMessage(model.requests[1]), "OUT-1")

	// explicit context: only the listed task
	assert.Contains(t, lastUserMessage(model.requests[2]), "OUT-2")
	assert.NotContains(t, lastUserMessage(model.requests[2]), "OUT-1")

	assert.Equal(t, "OUT-3", out.Raw)
	require.Len(t, out.Tasks, 3)
	assert.Equal(t, "first", out.Tasks[0].Name)
	assert.Equal(t, "research Go Engineer", out.Tasks[0].Description)
	assert.Equal(t, "Researcher", out.Tasks[0].Agent)
	assert.Equal(t, 9, out.Usage.TotalTokens)
	assert.Equal(t, 3, out.Usage.Requests)

	// caller's definitions are untouched
	assert.Equal(t, "research {position}", first.Description)
}

func TestKickoff_EmptyContextIsRespected(t *testing.T) {
	agent := &Agent{Role: "A", Goal: "g", Backstory: "b"}
	first := &Task{Description: "one", ExpectedOutput: "x", Agent: agent}
	second := &Task{Description: "two", ExpectedOutput: "y", Agent: agent, Context: []*Task{}}

	model := &scriptedModel{responses: []*llm.ChatResponse{answer("OUT-1"), answer("OUT-2")}}
	_, err := newTestCrew(t, model, first, second).Kickoff(context.Background(), nil)
	require.NoError(t, err)

	assert.NotContains(t, lastUserMessage(model.requests[1]), "OUT-1")
}

func TestKickoff_MissingTemplateVariable(t *testing.T) {
	agent := &Agent{Role: "A", Goal: "g", Backstory: "b"}
	first := &Task{Description: "ok {position}", ExpectedOutput: "x", Agent: agent}
	second := &Task{Description: "needs {salary}", ExpectedOutput: "y", Agent: agent}

	model := &scriptedModel{}
	_, err := newTestCrew(t, model, first, second).Kickoff(context.Background(), map[string]string{"position": "dev"})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeMissingTemplateVariable))
	assert.Contains(t, err.Error(), "salary")
	assert.Empty(t, model.requests, "no model call before all templates resolve")
}

func TestKickoff_TaskErrorAborts(t *testing.T) {
	agent := &Agent{Role: "A", Goal: "g", Backstory: "b"}
	first := &Task{Name: "first", Description: "one", ExpectedOutput: "x", Agent: agent}
	second := &Task{Name: "second", Description: "two", ExpectedOutput: "y", Agent: agent}

	model := &scriptedModel{err: errors.NewLLMRequestFailedError(stderrors.New("boom"))}
	_, err := newTestCrew(t, model, first, second).Kickoff(context.Background(), nil)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLLMRequestFailed))
	assert.Contains(t, err.Error(), `task "first" failed`)
	assert.Len(t, model.requests, 1)
}

func TestKickoff_WritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reports", "jobs_report.md")

	agent := &Agent{Role: "Writer", Goal: "g", Backstory: "b"}
	task := &Task{Description: "write", ExpectedOutput: "md", Agent: agent, OutputFile: path}

	model := &scriptedModel{responses: []*llm.ChatResponse{answer("```markdown\n# Jobs\n\n- one\n```")}}
	out, err := newTestCrew(t, model, task).Kickoff(context.Background(), nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Jobs\n\n- one\n", string(data))
	assert.Equal(t, path, out.Tasks[0].OutputFile)

	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))
}

// ==========================
// Tool loop
// ==========================

func TestKickoff_ToolLoop(t *testing.T) {
	tool := &echoTool{}
	agent := &Agent{Role: "Researcher", Goal: "g", Backstory: "b", Tools: []Tool{tool}}
	task := &Task{Description: "search", ExpectedOutput: "list", Agent: agent}

	model := &scriptedModel{responses: []*llm.ChatResponse{
		toolCall("call_1", "echo_tool", `{"query":"golang"}`),
		answer("found golang jobs"),
	}}
	out, err := newTestCrew(t, model, task).Kickoff(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "found golang jobs", out.Raw)
	assert.Equal(t, []string{"golang"}, tool.calls)

	require.Len(t, model.requests, 2)
	require.Len(t, model.requests[0].Tools, 1)
	assert.Equal(t, "echo_tool", model.requests[0].Tools[0].Name)

	msgs := model.requests[1].Messages
	last := msgs[len(msgs)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Equal(t, "echo: golang", last.Content)
	assert.Equal(t, llm.RoleAssistant, msgs[len(msgs)-2].Role)
}

func TestKickoff_ToolFailuresBecomeObservations(t *testing.T) {
	tests := []struct {
		name     string
		call     *llm.ChatResponse
		toolErr  error
		wantCode errors.ErrorCode
		wantRuns int
	}{
		{
			name:     "unknown tool",
			call:     toolCall("c1", "missing_tool", `{}`),
			wantCode: errors.ErrCodeToolNotFound,
		},
		{
			name:     "invalid arguments",
			call:     toolCall("c1", "echo_tool", `{"q":1}`),
			wantCode: errors.ErrCodeToolArgumentsInvalid,
		},
		{
			name:     "tool error",
			call:     toolCall("c1", "echo_tool", `{"query":"x"}`),
			toolErr:  errors.NewWebSearchTimeoutError("x"),
			wantCode: errors.ErrCodeWebSearchTimeout,
			wantRuns: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := &echoTool{err: tt.toolErr}
			agent := &Agent{Role: "A", Goal: "g", Backstory: "b", Tools: []Tool{tool}}
			task := &Task{Description: "d", ExpectedOutput: "e", Agent: agent}

			model := &scriptedModel{responses: []*llm.ChatResponse{tt.call, answer("recovered")}}
			out, err := newTestCrew(t, model, task).Kickoff(context.Background(), nil)
			require.NoError(t, err)

			assert.Equal(t, "recovered", out.Raw)
			assert.Len(t, tool.calls, tt.wantRuns)
			msgs := model.requests[1].Messages
			obs := msgs[len(msgs)-1].Content
			assert.True(t, strings.HasPrefix(obs, "Error: "), obs)
			assert.Contains(t, obs, string(tt.wantCode))
		})
	}
}

func TestKickoff_MaxIterationsForcesFinalAnswer(t *testing.T) {
	tool := &echoTool{}
	agent := &Agent{Role: "A", Goal: "g", Backstory: "b", Tools: []Tool{tool}, MaxIterations: 2}
	task := &Task{Description: "d", ExpectedOutput: "e", Agent: agent}

	model := &scriptedModel{responses: []*llm.ChatResponse{
		toolCall("c1", "echo_tool", `{"query":"a"}`),
		toolCall("c2", "echo_tool", `{"query":"b"}`),
		answer("forced answer"),
	}}
	out, err := newTestCrew(t, model, task).Kickoff(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "forced answer", out.Raw)
	require.Len(t, model.requests, 3)
	assert.Empty(t, model.requests[2].Tools, "final call has tools disabled")
	assert.Contains(t, lastUserMessage(model.requests[2]), "Final Answer")
	assert.Equal(t, []string{"a", "b"}, tool.calls)
}

func TestKickoff_RecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tool := &echoTool{}
	agent := &Agent{Role: "A", Goal: "g", Backstory: "b", Tools: []Tool{tool}}
	task := &Task{Name: "only", Description: "d", ExpectedOutput: "e", Agent: agent}
	model := &scriptedModel{responses: []*llm.ChatResponse{toolCall("c1", "echo_tool", `{"query":"a"}`), answer("done")}}

	_, err := newTestCrew(t, model, task).Kickoff(context.Background(), nil)
	require.NoError(t, err)

	names := map[string]int{}
	for _, s := range sr.Ended() {
		names[s.Name()]++
	}
	assert.Equal(t, 1, names["crew.kickoff"])
	assert.Equal(t, 1, names["crew.task"])
	assert.Equal(t, 1, names["crew.tool"])
}

// ==========================
// Validation
// ==========================

func TestValidate(t *testing.T) {
	agent := &Agent{Role: "A", Goal: "g", Backstory: "b"}
	first := &Task{Description: "one", Agent: agent}
	second := &Task{Description: "two", Agent: agent}

	tests := []struct {
		name string
		crew *Crew
	}{
		{"hierarchical process", &Crew{Process: "hierarchical", Tasks: []*Task{first}, LLM: &scriptedModel{}}},
		{"no tasks", &Crew{Process: Sequential, LLM: &scriptedModel{}}},
		{"no model", &Crew{Process: Sequential, Tasks: []*Task{first}}},
		{"task without agent", &Crew{Process: Sequential, Tasks: []*Task{{Description: "x"}}, LLM: &scriptedModel{}}},
		{"delegation", &Crew{Process: Sequential, Tasks: []*Task{{Description: "x", Agent: &Agent{Role: "D", AllowDelegation: true}}}, LLM: &scriptedModel{}}},
		{"context runs later", &Crew{Process: Sequential, Tasks: []*Task{{Description: "x", Agent: agent, Context: []*Task{second}}, second}, LLM: &scriptedModel{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.crew.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidCrewConfig))
		})
	}

	ok := &Crew{Process: Sequential, Tasks: []*Task{first, second}, LLM: &scriptedModel{}}
	assert.NoError(t, ok.Validate())
}

// ==========================
// Helpers
// ==========================

func TestInterpolate(t *testing.T) {
	inputs := map[string]string{"position": "Data Engineer", "location": "Remote"}

	out, err := Interpolate("Find {position} roles in {location}.", inputs, "t")
	require.NoError(t, err)
	assert.Equal(t, "Find Data Engineer roles in Remote.", out)

	out, err = Interpolate(`Return JSON like {"title": "x"} for {position}`, inputs, "t")
	require.NoError(t, err)
	assert.Equal(t, `Return JSON like {"title": "x"} for Data Engineer`, out)

	// values are inserted verbatim, never re-expanded
	out, err = Interpolate("{position}", map[string]string{"position": "{location}"}, "t")
	require.NoError(t, err)
	assert.Equal(t, "{location}", out)

	_, err = Interpolate("{unknown}", inputs, "task x description")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")
}

func TestFunctionName(t *testing.T) {
	assert.Equal(t, "job_search_tool", FunctionName("Job Search Tool"))
	assert.Equal(t, "job_page_reader", FunctionName("  Job Page Reader! "))
	assert.Equal(t, "web2_search", FunctionName("Web2-Search"))
}

func TestTaskDisplayName(t *testing.T) {
	assert.Equal(t, "research", (&Task{Name: "research", Description: "ignored"}).displayName())
	assert.Equal(t, "short description", (&Task{Description: "short description"}).displayName())

	desc := strings.Repeat("é", 39) + "日本語"
	name := (&Task{Description: desc}).displayName()
	assert.True(t, utf8.ValidString(name), name)
	assert.Equal(t, strings.Repeat("é", 39)+"日...", name)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "# Title\n", StripCodeFence("```markdown\n# Title\n```"))
	assert.Equal(t, "# Title\n", StripCodeFence("  ```\n# Title\n```  "))
	assert.Equal(t, "# Plain\n", StripCodeFence("# Plain\n"))
	multi := "```go\na\n```\ntext\n```go\nb\n```"
	assert.Equal(t, multi, StripCodeFence(multi))
}
