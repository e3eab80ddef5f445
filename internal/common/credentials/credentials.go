// Package credentials resolves the API keys the crew needs before any work starts.
package credentials

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups the application's secrets in the OS keychain.
const KeyringService = "jobcrew"

const (
	OpenAIAPIKey = "OPENAI_API_KEY"
	SerperAPIKey = "SERPER_API_KEY"
)

// Required lists the credentials checked at startup, in reporting order.
var Required = []string{OpenAIAPIKey, SerperAPIKey}

// Result of a precondition check.
type Result struct {
	Values  map[string]string
	Missing []string
	Sources map[string]string // name -> "env" | "keyring"
}

// OK reports whether every requested credential was found.
func (r Result) OK() bool {
	return len(r.Missing) == 0
}

// Check looks each name up in the environment and then in the OS keyring.
// Missing names keep the order of names.
func Check(names []string) Result {
	res := Result{
		Values:  make(map[string]string, len(names)),
		Sources: make(map[string]string, len(names)),
	}
	for _, name := range names {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			res.Values[name] = val
			res.Sources[name] = "env"
			continue
		}
		if val, err := keyring.Get(KeyringService, name); err == nil && strings.TrimSpace(val) != "" {
			res.Values[name] = strings.TrimSpace(val)
			res.Sources[name] = "keyring"
			continue
		}
		res.Missing = append(res.Missing, name)
	}
	return res
}

// Store saves a credential in the OS keyring.
func Store(name, value string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("credential name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("credential value is empty")
	}
	return keyring.Set(KeyringService, name, value)
}

// Delete removes a credential from the OS keyring.
func Delete(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("credential name is empty")
	}
	return keyring.Delete(KeyringService, name)
}
