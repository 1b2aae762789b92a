package domain

import (
	"errors"
	"testing"
)

func TestRuleSet_Classify(t *testing.T) {
	rules, err := NewRuleSet(1, []CategoryRule{
		{Pattern: "Chrome", SubjectKind: RuleApp, Category: "browsing"},
		{Pattern: "Chrome Beta", SubjectKind: RuleApp, Category: "testing"},
		{Pattern: "Xcode", SubjectKind: RuleApp, Category: "development"},
		{Pattern: "Xc", SubjectKind: RuleApp, Category: "short-prefix"},
		{Pattern: "news.", SubjectKind: RuleDomain, Category: "reading"},
		{Pattern: "news.example.com", SubjectKind: RuleDomain, Category: "exact-news"},
		{Pattern: "Slack", SubjectKind: RuleAny, Category: "communication"},
		{Pattern: "Sla", SubjectKind: RuleApp, Category: "first"},
		{Pattern: "Sla", SubjectKind: RuleApp, Category: "second"},
	})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}

	tests := []struct {
		name    string
		subject string
		kind    SubjectKind
		want    string
	}{
		{"longest prefix wins", "Chrome Beta", SubjectApp, "testing"},
		{"shorter rule still matches its own prefix", "Chrome Canary", SubjectApp, "browsing"},
		{"exact outranks prefix declared earlier", "Xcode", SubjectApp, "development"},
		{"prefix on a longer subject", "Xcode-beta", SubjectApp, "development"},
		{"exact domain outranks domain prefix", "news.example.com", SubjectDomain, "exact-news"},
		{"domain prefix", "news.ycombinator.com", SubjectDomain, "reading"},
		{"www is ignored", "www.news.example.com", SubjectDomain, "exact-news"},
		{"case insensitive", "chrome beta", SubjectApp, "testing"},
		{"kind filter excludes app rule", "Chrome", SubjectDomain, Uncategorized},
		{"any rule matches domain", "slack.com", SubjectDomain, "communication"},
		{"tie goes to first declared", "Slab", SubjectApp, "first"},
		{"no match", "Finder", SubjectApp, Uncategorized},
		{"empty subject", "  ", SubjectApp, Uncategorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rules.Classify(tt.subject, tt.kind); got != tt.want {
				t.Errorf("Classify(%q, %s) = %q, want %q", tt.subject, tt.kind, got, tt.want)
			}
		})
	}
}

func TestRuleSet_ClassifyIsDeterministic(t *testing.T) {
	rules, err := NewRuleSet(1, DefaultCategoryRules())
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	first := rules.Classify("github.com", SubjectDomain)
	for i := 0; i < 50; i++ {
		if got := rules.Classify("github.com", SubjectDomain); got != first {
			t.Fatalf("iteration %d: got %q, want %q", i, got, first)
		}
	}
}

func TestRuleSet_NilClassifiesUncategorized(t *testing.T) {
	var rules *RuleSet
	if got := rules.Classify("Xcode", SubjectApp); got != Uncategorized {
		t.Errorf("got %q, want %q", got, Uncategorized)
	}
}

func TestNewRuleSet_Validation(t *testing.T) {
	tests := []struct {
		name string
		rule CategoryRule
	}{
		{"empty pattern", CategoryRule{Pattern: " ", SubjectKind: RuleApp, Category: "x"}},
		{"empty category", CategoryRule{Pattern: "Xcode", SubjectKind: RuleApp}},
		{"unknown kind", CategoryRule{Pattern: "Xcode", SubjectKind: "window", Category: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleSet(1, []CategoryRule{tt.rule})
			if !errors.Is(err, ErrInvalidRule) {
				t.Errorf("expected ErrInvalidRule, got %v", err)
			}
		})
	}
}

func TestNewRuleSet_Normalizes(t *testing.T) {
	rules, err := NewRuleSet(3, []CategoryRule{{Pattern: " Xcode ", Category: " Development "}})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	got := rules.Rules[0]
	if got.Pattern != "Xcode" || got.Category != "development" || got.SubjectKind != RuleAny {
		t.Errorf("unexpected normalized rule: %+v", got)
	}
	if rules.Version != 3 {
		t.Errorf("Version = %d, want 3", rules.Version)
	}
}

func TestRuleSet_Categories(t *testing.T) {
	rules, _ := NewRuleSet(1, []CategoryRule{
		{Pattern: "a", Category: "x"},
		{Pattern: "b", Category: "y"},
		{Pattern: "c", Category: "x"},
	})
	got := rules.Categories()
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("Categories() = %v", got)
	}
}
