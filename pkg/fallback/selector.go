package fallback

import (
	"strings"

	"go.uber.org/zap"
)

// Selection is the outcome of Select: the rule that matched and the
// executable query it rendered.
type Selection struct {
	Rule  string
	Query string
}

// Selector maps questions to fallback queries. It is total: every question,
// including the empty string, gets a query. A Selector is immutable and safe
// for concurrent use.
type Selector struct {
	rules  []Rule
	logger *zap.Logger
}

// NewSelector builds a Selector. extra rules are evaluated before the
// built-in ones, in the order given.
func NewSelector(extra []Rule, logger *zap.Logger) *Selector {
	rules := make([]Rule, 0, len(extra)+len(BuiltinRules()))
	rules = append(rules, extra...)
	rules = append(rules, BuiltinRules()...)
	return &Selector{
		rules:  rules,
		logger: logger.Named("fallback"),
	}
}

// Select returns the query for the first matching rule. Rules whose template
// needs a year are skipped when the question contains none. When nothing
// matches, the most recent records of the referenced entity are returned.
func (s *Selector) Select(question string) Selection {
	q := strings.ToLower(question)
	year := ExtractYear(q)

	for _, rule := range s.rules {
		if rule.needsYear() && year == "" {
			continue
		}
		if rule.Match == nil || !rule.Match(q) {
			continue
		}
		s.logger.Debug("Fallback rule matched", zap.String("rule", rule.Name))
		return Selection{
			Rule:  rule.Name,
			Query: strings.ReplaceAll(rule.Template, YearPlaceholder, year),
		}
	}

	entity := MatchEntity(q)
	s.logger.Debug("No fallback rule matched, using generic query", zap.String("table", entity.Table))
	return Selection{Rule: genericRuleName, Query: genericQuery(entity)}
}

// RuleNames lists the rules in evaluation order, ending with the generic rule.
func (s *Selector) RuleNames() []string {
	names := make([]string, 0, len(s.rules)+1)
	for _, r := range s.rules {
		names = append(names, r.Name)
	}
	return append(names, genericRuleName)
}
