package jobcrew

import (
	"strings"

	"jobcrew/internal/common/errors"
)

// Inputs are the four search criteria collected from the user. They reach
// the task templates verbatim.
type Inputs struct {
	Position           string `json:"position"`
	Location           string `json:"location"`
	SalaryExpectations string `json:"salary_expectations"`
	EmploymentType     string `json:"employment_type"`
}

// Field labels used in prompts and validation messages, in prompt order.
const (
	FieldPosition           = "Position"
	FieldLocation           = "Location"
	FieldSalaryExpectations = "Salary expectations"
	FieldEmploymentType     = "Employment type"
)

// Map returns the template inputs keyed by placeholder name.
func (in Inputs) Map() map[string]string {
	return map[string]string{
		"position":            in.Position,
		"location":            in.Location,
		"salary_expectations": in.SalaryExpectations,
		"employment_type":     in.EmploymentType,
	}
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (in Inputs) Trimmed() Inputs {
	return Inputs{
		Position:           strings.TrimSpace(in.Position),
		Location:           strings.TrimSpace(in.Location),
		SalaryExpectations: strings.TrimSpace(in.SalaryExpectations),
		EmploymentType:     strings.TrimSpace(in.EmploymentType),
	}
}

// Validate rejects the first field, in prompt order, that is blank.
func (in Inputs) Validate() error {
	fields := []struct {
		label string
		value string
	}{
		{FieldPosition, in.Position},
		{FieldLocation, in.Location},
		{FieldSalaryExpectations, in.SalaryExpectations},
		{FieldEmploymentType, in.EmploymentType},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return errors.NewInvalidInputError(f.label)
		}
	}
	return nil
}
