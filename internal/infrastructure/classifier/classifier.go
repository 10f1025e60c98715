// Package classifier suggests taxonomy coordinates for free-text category
// labels using an ordered, data-driven pattern rule set.
package classifier

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mkleiva/byggklima/internal/core/domain"
)

//go:embed rules.yaml
var defaultRuleSet []byte

type ruleSpec struct {
	Pattern string `yaml:"pattern"`
	Value   string `yaml:"value"`
}

type ruleFile struct {
	Summary    []ruleSpec `yaml:"summary"`
	Scenario   []ruleSpec `yaml:"scenario"`
	Discipline []ruleSpec `yaml:"discipline"`
	MMI        []ruleSpec `yaml:"mmi"`
}

type rule struct {
	re *regexp.Regexp
	// value overrides the captured group when set (alias rules such as
	// Nybygg carry no capture).
	value string
}

// Engine is a pure classifier over an ordered rule list. It holds no
// per-row state and is safe for concurrent use.
type Engine struct {
	summary    []rule
	scenario   []rule
	discipline []rule
	mmi        []rule
}

// New builds an Engine from the embedded default rule set.
func New() (*Engine, error) {
	return NewFromYAML(defaultRuleSet)
}

// NewFromYAML builds an Engine from a caller-supplied rule document,
// preserving rule order as priority.
func NewFromYAML(data []byte) (*Engine, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rule set: %w", err)
	}

	engine := &Engine{}
	var err error
	if engine.summary, err = compileRules("summary", file.Summary); err != nil {
		return nil, err
	}
	if engine.scenario, err = compileRules("scenario", file.Scenario); err != nil {
		return nil, err
	}
	if engine.discipline, err = compileRules("discipline", file.Discipline); err != nil {
		return nil, err
	}
	if engine.mmi, err = compileRules("mmi", file.MMI); err != nil {
		return nil, err
	}
	if len(engine.scenario) == 0 || len(engine.discipline) == 0 || len(engine.mmi) == 0 {
		return nil, fmt.Errorf("rule set is missing scenario, discipline or mmi rules")
	}
	return engine, nil
}

func compileRules(field string, specs []ruleSpec) ([]rule, error) {
	rules := make([]rule, 0, len(specs))
	for i, spec := range specs {
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %s rule %d (%q): %w", field, i, spec.Pattern, err)
		}
		rules = append(rules, rule{re: re, value: spec.Value})
	}
	return rules, nil
}

// Classify runs all four sub-classifications on the label. Unmatched
// fields stay empty; summary rows still receive the other classifications
// for visibility even though they are excluded downstream.
func (e *Engine) Classify(category string) domain.Suggestion {
	suggestion := domain.Suggestion{
		IsSummary: e.isSummary(category),
	}
	if scenario := match(e.scenario, category); scenario != "" {
		suggestion.Scenario = domain.Scenario(strings.ToUpper(scenario))
	}
	if discipline := match(e.discipline, category); discipline != "" {
		suggestion.Discipline = domain.Discipline(discipline)
	}
	if code := match(e.mmi, category); code != "" {
		suggestion.MMICode = domain.MMICode(code)
		suggestion.MMILabel = suggestion.MMICode.Label()
	}
	return suggestion
}

func (e *Engine) isSummary(category string) bool {
	for _, r := range e.summary {
		if r.re.MatchString(category) {
			return true
		}
	}
	return false
}

// match returns the first rule's result in priority order: the rule's
// fixed value when set, otherwise the first capture group of the leftmost
// match. Ties are resolved by rule order, then left-to-right in the text.
func match(rules []rule, category string) string {
	for _, r := range rules {
		groups := r.re.FindStringSubmatch(category)
		if groups == nil {
			continue
		}
		if r.value != "" {
			return r.value
		}
		if len(groups) > 1 && groups[1] != "" {
			return groups[1]
		}
	}
	return ""
}
