package fallback

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleFile is the on-disk format for site-specific fallback rules:
//
//	rules:
//	  - name: overdue_tenders
//	    any: [overdue, late]
//	    all: [tender]
//	    template: SELECT TOP 50 ... WHERE (IsDeleted = 0 OR IsDeleted IS NULL) ...
//
// A rule matches when the question contains every word in all and at least
// one word in any. Words match whole words, case-insensitively.
type RuleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is one rule in a RuleFile.
type RuleSpec struct {
	Name     string   `yaml:"name"`
	Any      []string `yaml:"any"`
	All      []string `yaml:"all"`
	Template string   `yaml:"template"`
}

// LoadRules reads and checks a rule file. Every template must pass the same
// checks as generated SQL, so a bad file fails startup instead of a request.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses and checks rule file contents.
func ParseRules(data []byte) ([]Rule, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse fallback rules: %w", err)
	}

	seen := make(map[string]bool, len(file.Rules))
	rules := make([]Rule, 0, len(file.Rules))
	for i, entry := range file.Rules {
		rule, err := entry.compile()
		if err != nil {
			return nil, fmt.Errorf("fallback rule %d (%q): %w", i, entry.Name, err)
		}
		if seen[rule.Name] {
			return nil, fmt.Errorf("fallback rule %d: duplicate name %q", i, rule.Name)
		}
		seen[rule.Name] = true
		rules = append(rules, rule)
	}
	return rules, nil
}

func (s RuleSpec) compile() (Rule, error) {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return Rule{}, fmt.Errorf("name is required")
	}
	if len(s.Any) == 0 && len(s.All) == 0 {
		return Rule{}, fmt.Errorf("at least one of any or all is required")
	}
	for _, w := range append(append([]string(nil), s.Any...), s.All...) {
		if strings.TrimSpace(w) == "" {
			return Rule{}, fmt.Errorf("match words must not be blank")
		}
	}
	template := strings.Join(strings.Fields(s.Template), " ")
	if template == "" {
		return Rule{}, fmt.Errorf("template is required")
	}
	if err := CheckTemplate(template); err != nil {
		return Rule{}, fmt.Errorf("invalid template: %w", err)
	}

	anyPattern := wordsPattern(s.Any)
	allPatterns := make([]*regexp.Regexp, 0, len(s.All))
	for _, w := range s.All {
		allPatterns = append(allPatterns, wordsPattern([]string{w}))
	}

	return Rule{
		Name: name,
		Match: func(q string) bool {
			for _, p := range allPatterns {
				if !p.MatchString(q) {
					return false
				}
			}
			return anyPattern == nil || anyPattern.MatchString(q)
		},
		Template: template,
	}, nil
}

// wordsPattern matches any of words as a whole word, or nil for no words.
func wordsPattern(words []string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(strings.ToLower(w))
		if w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}
