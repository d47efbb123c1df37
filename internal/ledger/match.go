// This file implements the Strategy Pattern for attributing a transaction
// category to a budget label. Each strategy decides whether a label covers a
// category; the tracker never compares strings itself.

package ledger

import (
	"fmt"
	"strings"
)

// Matcher decides whether a budget label covers a transaction category.
type Matcher interface {
	Match(label, category string) bool
}

// MatcherFunc adapts a plain function to Matcher.
type MatcherFunc func(label, category string) bool

func (f MatcherFunc) Match(label, category string) bool { return f(label, category) }

// SubstringMatcher attributes a category to every label contained in it, so a
// "food" budget covers "food delivery" and "fast food". Two labels contained in
// the same category both count the transaction.
type SubstringMatcher struct {
	FoldCase bool
}

func (m SubstringMatcher) Match(label, category string) bool {
	if label == "" {
		return false
	}
	if m.FoldCase {
		return strings.Contains(strings.ToLower(category), strings.ToLower(label))
	}
	return strings.Contains(category, label)
}

// ExactMatcher only attributes a category to the label with identical text.
type ExactMatcher struct{}

func (ExactMatcher) Match(label, category string) bool { return label == category }

const (
	MatchSubstring     = "substring"
	MatchSubstringFold = "substring_fold"
	MatchExact         = "exact"
)

// matchStrategies maps configuration names to matching strategies.
var matchStrategies = map[string]Matcher{
	MatchSubstring:     SubstringMatcher{},
	MatchSubstringFold: SubstringMatcher{FoldCase: true},
	MatchExact:         ExactMatcher{},
}

// GetMatcher returns the strategy registered under name. An empty name selects
// the case-sensitive substring strategy.
func GetMatcher(name string) (Matcher, error) {
	if name == "" {
		name = MatchSubstring
	}
	m, ok := matchStrategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown budget match strategy: %s", name)
	}
	return m, nil
}

// RegisterMatcher makes a custom strategy selectable by name.
func RegisterMatcher(name string, m Matcher) {
	matchStrategies[name] = m
}
