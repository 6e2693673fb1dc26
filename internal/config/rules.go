package config

import (
	_ "embed"
	"os"

	"phenotab/domain/rules"
	"phenotab/internal/errors"
)

//go:embed rules.json
var defaultRules []byte

// LoadRules compiles the rules document at path. With an empty path the
// embedded Flinders batch 2 defaults are used.
func LoadRules(path string) (*rules.RuleSet, error) {
	data := defaultRules
	if path != "" {
		loaded, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read rules file")
		}
		data = loaded
	}
	return rules.Load(data)
}
