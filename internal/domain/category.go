package domain

import (
	"fmt"
	"strings"
)

// Uncategorized is the category assigned when no rule matches a subject.
const Uncategorized = "uncategorized"

// RuleKind filters which subject kinds a rule applies to.
type RuleKind string

const (
	RuleApp    RuleKind = "app"
	RuleDomain RuleKind = "domain"
	RuleAny    RuleKind = "any"
)

func (k RuleKind) applies(kind SubjectKind) bool {
	switch k {
	case RuleAny:
		return true
	case RuleApp:
		return kind == SubjectApp
	case RuleDomain:
		return kind == SubjectDomain
	default:
		return false
	}
}

// CategoryRule maps subjects equal to, or starting with, Pattern to Category.
type CategoryRule struct {
	Pattern     string   `json:"pattern"`
	SubjectKind RuleKind `json:"subject_kind"`
	Category    string   `json:"category"`
}

// RuleSet is one immutable version of the category rule table. Order is significant.
type RuleSet struct {
	Version int64          `json:"version"`
	Rules   []CategoryRule `json:"rules"`
}

// NewRuleSet validates and normalizes rules into a new table version.
func NewRuleSet(version int64, rules []CategoryRule) (*RuleSet, error) {
	normalized := make([]CategoryRule, 0, len(rules))
	for i, rule := range rules {
		kind := RuleKind(strings.ToLower(strings.TrimSpace(string(rule.SubjectKind))))
		if kind == "" {
			kind = RuleAny
		}
		if kind != RuleApp && kind != RuleDomain && kind != RuleAny {
			return nil, fmt.Errorf("%w: rule %d has unknown subject_kind %q", ErrInvalidRule, i, rule.SubjectKind)
		}
		pattern := strings.TrimSpace(rule.Pattern)
		if pattern == "" {
			return nil, fmt.Errorf("%w: rule %d has an empty pattern", ErrInvalidRule, i)
		}
		category := strings.ToLower(strings.TrimSpace(rule.Category))
		if category == "" {
			return nil, fmt.Errorf("%w: rule %d (%s) has an empty category", ErrInvalidRule, i, pattern)
		}
		normalized = append(normalized, CategoryRule{
			Pattern:     pattern,
			SubjectKind: kind,
			Category:    category,
		})
	}
	return &RuleSet{Version: version, Rules: normalized}, nil
}

// Classify resolves the category of a subject. An exact pattern match wins
// over any prefix match; among prefix matches the longest pattern wins; full
// ties go to the first declared rule.
func (rs *RuleSet) Classify(subject string, kind SubjectKind) string {
	if rs == nil {
		return Uncategorized
	}
	target := matchKey(subject, kind)
	if target == "" {
		return Uncategorized
	}

	best := -1
	bestExact := false
	bestLen := 0
	for i, rule := range rs.Rules {
		if !rule.SubjectKind.applies(kind) {
			continue
		}
		pattern := matchKey(rule.Pattern, kind)
		exact := pattern == target
		if !exact && !strings.HasPrefix(target, pattern) {
			continue
		}
		switch {
		case best == -1:
		case exact && !bestExact:
		case exact == bestExact && len(pattern) > bestLen:
		default:
			continue
		}
		best, bestExact, bestLen = i, exact, len(pattern)
	}

	if best == -1 {
		return Uncategorized
	}
	return rs.Rules[best].Category
}

// Categories returns the distinct category labels of the table in declaration order.
func (rs *RuleSet) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, rule := range rs.Rules {
		if !seen[rule.Category] {
			seen[rule.Category] = true
			out = append(out, rule.Category)
		}
	}
	return out
}

func matchKey(s string, kind SubjectKind) string {
	return strings.ToLower(NormalizeSubject(s, kind))
}

// DefaultCategoryRules is the table seeded on first start.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{Pattern: "Xcode", SubjectKind: RuleApp, Category: "development"},
		{Pattern: "Code", SubjectKind: RuleApp, Category: "development"},
		{Pattern: "VSCode", SubjectKind: RuleApp, Category: "development"},
		{Pattern: "Visual Studio Code", SubjectKind: RuleApp, Category: "development"},
		{Pattern: "GoLand", SubjectKind: RuleApp, Category: "development"},
		{Pattern: "IntelliJ", SubjectKind: RuleApp, Category: "development"},
		{Pattern: "Terminal", SubjectKind: RuleApp, Category: "development"},
		{Pattern: "iTerm", SubjectKind: RuleApp, Category: "development"},
		{Pattern: "Slack", SubjectKind: RuleApp, Category: "communication"},
		{Pattern: "Mail", SubjectKind: RuleApp, Category: "communication"},
		{Pattern: "zoom", SubjectKind: RuleApp, Category: "communication"},
		{Pattern: "Discord", SubjectKind: RuleApp, Category: "communication"},
		{Pattern: "Notion", SubjectKind: RuleApp, Category: "research"},
		{Pattern: "Preview", SubjectKind: RuleApp, Category: "research"},
		{Pattern: "Spotify", SubjectKind: RuleApp, Category: "entertainment"},
		{Pattern: "github.com", SubjectKind: RuleDomain, Category: "development"},
		{Pattern: "stackoverflow.com", SubjectKind: RuleDomain, Category: "development"},
		{Pattern: "pkg.go.dev", SubjectKind: RuleDomain, Category: "development"},
		{Pattern: "docs.", SubjectKind: RuleDomain, Category: "research"},
		{Pattern: "wikipedia.org", SubjectKind: RuleDomain, Category: "research"},
		{Pattern: "news.", SubjectKind: RuleDomain, Category: "reading"},
		{Pattern: "mail.google.com", SubjectKind: RuleDomain, Category: "communication"},
		{Pattern: "youtube.com", SubjectKind: RuleDomain, Category: "entertainment"},
		{Pattern: "netflix.com", SubjectKind: RuleDomain, Category: "entertainment"},
		{Pattern: "twitter.com", SubjectKind: RuleDomain, Category: "sns"},
		{Pattern: "x.com", SubjectKind: RuleDomain, Category: "sns"},
		{Pattern: "instagram.com", SubjectKind: RuleDomain, Category: "sns"},
		{Pattern: "amazon.", SubjectKind: RuleDomain, Category: "shopping"},
	}
}
