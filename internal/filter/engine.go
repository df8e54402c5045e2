// Package filter implements the priority-ordered rule engine.
package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"newsrelay/internal/model"
)

// Decision is the outcome of evaluating a candidate against the rule set.
type Decision struct {
	Action model.Action
	// Rule is the winning rule, nil when the default action applied.
	Rule *model.FilterRule
}

// RuleID returns the id of the winning rule or an empty string.
func (d Decision) RuleID() string {
	if d.Rule == nil {
		return ""
	}
	return d.Rule.ID
}

// Note returns the filter aggregate note for the decision.
func (d Decision) Note() string {
	if d.Rule == nil {
		return "default:" + string(d.Action)
	}
	if d.Action == model.ActionModeration {
		return "moderation:" + d.Rule.Keyword
	}
	return "rule:" + d.Rule.Keyword
}

type compiledRule struct {
	rule model.FilterRule
	re   *regexp.Regexp
}

// Engine evaluates candidates against a snapshot of active rules.
type Engine struct {
	rules         []compiledRule
	defaultAction model.Action
}

// New builds an engine from a rule snapshot. Inactive rules are dropped and
// the rest are ordered by priority, most recently updated first on ties.
// Malformed regex rules are kept but never match.
func New(rules []model.FilterRule, settings model.Settings) *Engine {
	active := make([]model.FilterRule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		if active[i].UpdatedAt != active[j].UpdatedAt {
			return active[i].UpdatedAt > active[j].UpdatedAt
		}
		return active[i].ID < active[j].ID
	})

	compiled := make([]compiledRule, 0, len(active))
	for _, r := range active {
		cr := compiledRule{rule: r}
		if r.MatchType == model.MatchRegex {
			re, err := regexp.Compile(r.Keyword)
			if err == nil {
				cr.re = re
			}
		}
		compiled = append(compiled, cr)
	}

	def := settings.DefaultAction
	if !def.Valid() {
		def = model.ActionPublish
	}
	return &Engine{rules: compiled, defaultAction: def}
}

// Decide returns the action of the first matching rule, or the default action.
func (e *Engine) Decide(text string) Decision {
	if text == "" {
		return Decision{Action: e.defaultAction}
	}
	for i := range e.rules {
		cr := &e.rules[i]
		if cr.matches(text) {
			rule := cr.rule
			return Decision{Action: rule.Action, Rule: &rule}
		}
	}
	return Decision{Action: e.defaultAction}
}

func (cr *compiledRule) matches(text string) bool {
	if cr.rule.MatchType == model.MatchRegex {
		return cr.re != nil && cr.re.MatchString(text)
	}
	return cr.rule.Keyword != "" && strings.Contains(text, cr.rule.Keyword)
}

// Decide is a convenience wrapper that evaluates a single text.
func Decide(text string, rules []model.FilterRule, settings model.Settings) Decision {
	return New(rules, settings).Decide(text)
}

// ValidateRegex checks whether a rule keyword compiles as a regular expression.
func ValidateRegex(pattern string) error {
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	return nil
}
