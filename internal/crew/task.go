package crew

import (
	"strings"
)

// Task is a unit of work assigned to one agent.
//
// Context lists the tasks whose outputs are handed to this one. A nil Context
// means every task that ran before it; a non-nil slice, even an empty one, is
// used as given.
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	Agent          *Agent
	Context        []*Task
	OutputFile     string
}

type TaskOutput struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	ExpectedOutput string `json:"expected_output"`
	Agent          string `json:"agent"`
	Raw            string `json:"raw"`
	OutputFile     string `json:"output_file,omitempty"`
}

const contextDivider = "\n\n----------\n\n"

func (t *Task) displayName() string {
	if t.Name != "" {
		return t.Name
	}
	r := []rune(t.Description)
	if len(r) > 40 {
		return string(r[:40]) + "..."
	}
	return t.Description
}

func (t *Task) prompt(context string) string {
	var b strings.Builder
	b.WriteString("Current Task: ")
	b.WriteString(t.Description)
	b.WriteString("\n\nThis is the expected criteria for your final answer: ")
	b.WriteString(t.ExpectedOutput)
	b.WriteString("\nyou MUST return the actual complete content as the final answer, not a summary.")
	if context != "" {
		b.WriteString("\n\nThis is the context you're working with:\n")
		b.WriteString(context)
	}
	b.WriteString("\n\nBegin! This is VERY important to you, use the tools available and give your best Final Answer, your job depends on it!")
	return b.String()
}

func (t *Task) interpolate(inputs map[string]string, agent *Agent) (*Task, error) {
	out := *t
	out.Agent = agent
	var err error
	if out.Description, err = Interpolate(t.Description, inputs, "task "+t.displayName()+" description"); err != nil {
		return nil, err
	}
	if out.ExpectedOutput, err = Interpolate(t.ExpectedOutput, inputs, "task "+t.displayName()+" expected output"); err != nil {
		return nil, err
	}
	if out.OutputFile, err = Interpolate(t.OutputFile, inputs, "task "+t.displayName()+" output file"); err != nil {
		return nil, err
	}
	return &out, nil
}
