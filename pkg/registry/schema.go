// pkg/registry/schema.go
package registry

// ProcessSequential runs tasks one after another in definition order.
const ProcessSequential = "sequential"

// CrewRegistry is the declarative description of a crew: its agents and the
// ordered tasks they run.
type CrewRegistry struct {
	Version string     `yaml:"version"`
	Process string     `yaml:"process"`
	Agents  []AgentDef `yaml:"agents"`
	Tasks   []TaskDef  `yaml:"tasks"`
}

type AgentDef struct {
	ID              string   `yaml:"id"`
	Role            string   `yaml:"role"`
	Goal            string   `yaml:"goal"`
	Backstory       string   `yaml:"backstory"`
	Tools           []string `yaml:"tools"`
	AllowDelegation bool     `yaml:"allow_delegation"`
	MaxIterations   int      `yaml:"max_iterations"`
}

type TaskDef struct {
	ID             string `yaml:"id"`
	Agent          string `yaml:"agent"`
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
	// Context lists task IDs. Absent means every earlier task; an explicit
	// empty list means none.
	Context    *[]string `yaml:"context"`
	OutputFile string    `yaml:"output_file"`
}
