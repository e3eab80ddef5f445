package crew

import (
	"regexp"

	"jobcrew/internal/common/errors"
)

// placeholderRe matches {name} where name is an identifier. Other braces,
// such as JSON examples in a prompt, are left alone.
var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Interpolate replaces {name} placeholders with inputs[name]. An unknown
// name fails with MISSING_TEMPLATE_VARIABLE; where names the text in errors.
func Interpolate(text string, inputs map[string]string, where string) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := inputs[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return v
	})
	if missing != "" {
		return "", errors.NewMissingTemplateVariableError(missing, where)
	}
	return out, nil
}
