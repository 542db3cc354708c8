// Package patterns implements the regex-based detectors for structured
// entity categories (case numbers, citations, contact details, money,
// dates, addresses, organizations, percentages, numbers). Matchers are
// pure functions of the input text; ambiguous forms are emitted as
// overlapping candidates and left to the overlap resolver.
package patterns

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/rebeccahihi/pseudo/internal/config"
	"github.com/rebeccahihi/pseudo/internal/entity"
	"github.com/rebeccahihi/pseudo/internal/logger"
)

// Matcher runs every enabled detection rule over input text.
type Matcher struct {
	rules  []Rule
	logger *logger.Logger
}

// NewMatcher builds a matcher from the default rules, applying configured
// pattern overrides and skip lists. A malformed override fails here, at
// configuration time, wrapping ErrPatternCompilation.
func NewMatcher(cfg config.PseudonymConfig, log *logger.Logger) (*Matcher, error) {
	skip := make(map[entity.Type]bool, len(cfg.SkipTypes))
	for _, t := range cfg.SkipTypes {
		skip[entity.Type(t)] = true
	}

	var rules []Rule
	for _, rule := range DefaultRules() {
		if skip[rule.Type] {
			continue
		}
		if expr, ok := cfg.PatternOverrides[rule.Name]; ok {
			compiled, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %q: %v", entity.ErrPatternCompilation, rule.Name, err)
			}
			rule.Pattern = compiled
		}
		rules = append(rules, rule)
	}

	log.Info("Pattern matcher initialized",
		zap.Int("total_rules", len(rules)),
		zap.Int("skipped_types", len(skip)),
	)

	return &Matcher{rules: rules, logger: log}, nil
}

// Find returns every candidate span detected by the enabled rules.
// Categories are independent: a failure in one never suppresses another,
// and candidates from different rules may overlap.
func (m *Matcher) Find(text string) []entity.CandidateSpan {
	var spans []entity.CandidateSpan

	for _, rule := range m.rules {
		matches := rule.Pattern.FindAllStringIndex(text, -1)
		if matches == nil {
			continue
		}

		accepted := 0
		for _, loc := range matches {
			surface := text[loc[0]:loc[1]]
			if rule.Filter != nil && !rule.Filter(surface) {
				continue
			}
			spans = append(spans, entity.CandidateSpan{
				Start:      loc[0],
				End:        loc[1],
				Text:       surface,
				Type:       rule.Type,
				Source:     rule.Name,
				Confidence: rule.Confidence,
			})
			accepted++
		}

		if accepted > 0 {
			m.logger.Debug("Pattern matches",
				zap.String("rule", rule.Name),
				zap.Int("count", accepted),
			)
		}
	}

	return spans
}

// RuleNames lists the active rule identifiers, for the info endpoint.
func (m *Matcher) RuleNames() []string {
	names := make([]string, 0, len(m.rules))
	for _, r := range m.rules {
		names = append(names, r.Name)
	}
	return names
}
