// Package jobcrew assembles the job search crew: three agents that research,
// analyse and report on openings matching the user's criteria.
package jobcrew

import (
	"context"
	_ "embed"
	"fmt"

	"jobcrew/internal/common/errors"
	"jobcrew/internal/crew"
	"jobcrew/pkg/registry"
)

//go:embed definitions.yaml
var defaultDefinitions []byte

// Tool IDs referenced by definitions.yaml.
const (
	ToolJobSearch = "job_search"
	ToolJobPage   = "job_page"
)

// DefaultDefinitions returns a copy of the built-in crew definitions.
func DefaultDefinitions() []byte {
	return append([]byte(nil), defaultDefinitions...)
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

type Options struct {
	// DefinitionsPath replaces the embedded crew definitions when set.
	DefinitionsPath string
	// OutputFile overrides the report path of tasks that write a file.
	OutputFile    string
	Verbose       bool
	MaxIterations int
}

type JobCrew struct {
	registry *registry.CrewRegistry
	model    crew.ChatModel
	tools    map[string]crew.Tool
	opts     Options
	logger   Logger
}

// New loads the crew definitions and binds them to a model and tools by ID.
func New(model crew.ChatModel, tools map[string]crew.Tool, opts Options, log Logger) (*JobCrew, error) {
	var (
		reg *registry.CrewRegistry
		err error
	)
	if opts.DefinitionsPath != "" {
		reg, err = registry.LoadRegistry(opts.DefinitionsPath)
	} else {
		reg, err = registry.Parse(defaultDefinitions)
	}
	if err != nil {
		return nil, errors.NewInvalidCrewConfigError(err.Error())
	}

	for _, a := range reg.Agents {
		for _, id := range a.Tools {
			if _, ok := tools[id]; !ok {
				return nil, errors.NewInvalidCrewConfigError(fmt.Sprintf("agent %q uses unregistered tool %q", a.ID, id))
			}
		}
	}

	return &JobCrew{
		registry: reg,
		model:    model,
		tools:    tools,
		opts:     opts,
		logger:   log,
	}, nil
}

// Build turns the definitions into a runnable crew. Context lists become
// pointers to the built tasks.
func (j *JobCrew) Build() *crew.Crew {
	agents := make(map[string]*crew.Agent, len(j.registry.Agents))
	c := &crew.Crew{
		Process:       crew.Process(j.registry.Process),
		Verbose:       j.opts.Verbose,
		MaxIterations: j.opts.MaxIterations,
		LLM:           j.model,
		Logger:        j.logger,
	}

	for _, def := range j.registry.Agents {
		a := &crew.Agent{
			Role:            def.Role,
			Goal:            def.Goal,
			Backstory:       def.Backstory,
			AllowDelegation: def.AllowDelegation,
			MaxIterations:   def.MaxIterations,
		}
		for _, id := range def.Tools {
			a.Tools = append(a.Tools, j.tools[id])
		}
		agents[def.ID] = a
		c.Agents = append(c.Agents, a)
	}

	tasks := make(map[string]*crew.Task, len(j.registry.Tasks))
	for _, def := range j.registry.Tasks {
		t := &crew.Task{
			Name:           def.ID,
			Description:    def.Description,
			ExpectedOutput: def.ExpectedOutput,
			Agent:          agents[def.Agent],
			OutputFile:     def.OutputFile,
		}
		if def.Context != nil {
			t.Context = make([]*crew.Task, 0, len(*def.Context))
			for _, id := range *def.Context {
				t.Context = append(t.Context, tasks[id])
			}
		}
		if t.OutputFile != "" && j.opts.OutputFile != "" {
			t.OutputFile = j.opts.OutputFile
		}
		tasks[def.ID] = t
		c.Tasks = append(c.Tasks, t)
	}
	return c
}

// ReportPath is the file the final report is written to, or "" if no task writes one.
func (j *JobCrew) ReportPath() string {
	path := ""
	for _, def := range j.registry.Tasks {
		if def.OutputFile != "" {
			path = def.OutputFile
		}
	}
	if path != "" && j.opts.OutputFile != "" {
		return j.opts.OutputFile
	}
	return path
}

// Run trims and validates the inputs and kicks off the crew with them.
func (j *JobCrew) Run(ctx context.Context, inputs Inputs) (*crew.CrewOutput, error) {
	inputs = inputs.Trimmed()
	if err := inputs.Validate(); err != nil {
		return nil, err
	}
	params := inputs.Map()

	j.logger.Info("search parameters", map[string]interface{}{
		"position":            params["position"],
		"location":            params["location"],
		"salary_expectations": params["salary_expectations"],
		"employment_type":     params["employment_type"],
	})

	return j.Build().Kickoff(ctx, params)
}
