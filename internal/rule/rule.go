// Package rule compiles declarative status rules into a watcher classifier.
package rule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kyleking/gh-prwatch/internal/github"
	"github.com/kyleking/gh-prwatch/internal/watcher"
)

// Spec is one status rule as written in configuration: a status to assign
// and the conditions under which it applies. All listed conditions must hold.
type Spec struct {
	Status string `yaml:"status"`
	When   When   `yaml:"when"`
}

// When lists the conditions a rule matches on. Zero-valued fields are not
// evaluated.
type When struct {
	Draft            *bool    `yaml:"draft"`
	HasLabel         string   `yaml:"has_label"`
	MissingLabel     string   `yaml:"missing_label"`
	ReviewState      string   `yaml:"review_state"`      // approved, changes_requested
	ChecksConclusion string   `yaml:"checks_conclusion"` // success, failure, pending
	MergeableState   []string `yaml:"mergeable_state"`
}

// Rule is a compiled, validated rule.
type Rule struct {
	status string
	when   When
}

// Compile validates the specs and returns the ordered rule list. Malformed
// rules are configuration errors and fail here.
func Compile(specs []Spec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))

	for i, spec := range specs {
		if strings.TrimSpace(spec.Status) == "" {
			return nil, fmt.Errorf("rule %d: status is required", i+1)
		}

		switch spec.When.ReviewState {
		case "", "approved", "changes_requested":
		default:
			return nil, fmt.Errorf("rule %d: unknown review_state %q", i+1, spec.When.ReviewState)
		}

		switch spec.When.ChecksConclusion {
		case "", "success", "failure", "pending":
		default:
			return nil, fmt.Errorf("rule %d: unknown checks_conclusion %q", i+1, spec.When.ChecksConclusion)
		}

		rules = append(rules, Rule{status: spec.Status, when: spec.When})
	}

	if len(rules) == 0 {
		return nil, errors.New("no rules defined")
	}

	return rules, nil
}

// Classifier returns a watcher classifier that evaluates the rules in order
// and assigns the first matching status. No match yields an empty status.
func Classifier(rules []Rule) watcher.Classifier {
	return func(pr watcher.WatchedPR, details watcher.ActivityDetails) (string, error) {
		for _, r := range rules {
			if r.matches(pr.PR, details) {
				return r.status, nil
			}
		}

		return "", nil
	}
}

func (r Rule) matches(pr github.PullRequest, details watcher.ActivityDetails) bool {
	if r.when.Draft != nil && pr.Draft != *r.when.Draft {
		return false
	}

	if r.when.HasLabel != "" && !hasLabel(pr, r.when.HasLabel) {
		return false
	}

	if r.when.MissingLabel != "" && hasLabel(pr, r.when.MissingLabel) {
		return false
	}

	if r.when.ReviewState != "" && latestReviewState(details.Reviews) != r.when.ReviewState {
		return false
	}

	if r.when.ChecksConclusion != "" && checksConclusion(details) != r.when.ChecksConclusion {
		return false
	}

	if len(r.when.MergeableState) > 0 && !containsString(r.when.MergeableState, pr.MergeableState) {
		return false
	}

	return true
}

func hasLabel(pr github.PullRequest, label string) bool {
	for _, l := range pr.Labels {
		if strings.EqualFold(l.Name, label) {
			return true
		}
	}

	return false
}

// latestReviewState reduces the review history to the most recent approval or
// change request per reviewer: any outstanding change request wins, otherwise
// any approval counts.
func latestReviewState(reviews []github.Review) string {
	latest := make(map[string]string)

	for _, review := range reviews {
		switch review.State {
		case github.ReviewApproved, github.ReviewChangesRequested:
			latest[review.User.Login] = review.State
		}
	}

	if len(latest) == 0 {
		return ""
	}

	for _, state := range latest {
		if state == github.ReviewChangesRequested {
			return "changes_requested"
		}
	}

	return "approved"
}

func checksConclusion(details watcher.ActivityDetails) string {
	if !details.ChecksComplete {
		return "pending"
	}

	for _, run := range details.CheckRuns {
		if run.Conclusion == github.ConclusionFailure {
			return "failure"
		}
	}

	return "success"
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}

	return false
}
