package crew

// DefaultMaxIterations caps the tool-calling loop of an agent.
const DefaultMaxIterations = 15

// Agent is a persona that executes tasks with a language model and its tools.
type Agent struct {
	Role            string
	Goal            string
	Backstory       string
	Tools           []Tool
	AllowDelegation bool
	// MaxIterations <= 0 falls back to the crew default.
	MaxIterations int
}

func (a *Agent) systemPrompt() string {
	return "You are " + a.Role + ". " + a.Backstory + "\nYour personal goal is: " + a.Goal
}

func (a *Agent) interpolate(inputs map[string]string) (*Agent, error) {
	out := *a
	var err error
	if out.Role, err = Interpolate(a.Role, inputs, "agent role"); err != nil {
		return nil, err
	}
	if out.Goal, err = Interpolate(a.Goal, inputs, "agent "+a.Role+" goal"); err != nil {
		return nil, err
	}
	if out.Backstory, err = Interpolate(a.Backstory, inputs, "agent "+a.Role+" backstory"); err != nil {
		return nil, err
	}
	return &out, nil
}
