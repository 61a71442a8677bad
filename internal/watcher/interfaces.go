// Package watcher turns periodic polling of GitHub repositories into a stream
// of typed pull-request lifecycle events.
package watcher

import "github.com/kyleking/gh-prwatch/internal/github"

// GitHubClient defines the interface for GitHub API operations needed by the watcher.
type GitHubClient interface {
	ListOpenPullRequests(owner, repo string) ([]github.PullRequest, error)
	GetPullRequest(owner, repo string, number int) (*github.PullRequest, error)
	ListIssueComments(owner, repo string, number int) ([]github.Comment, error)
	ListReviews(owner, repo string, number int) ([]github.Review, error)
	ListCheckRuns(owner, repo, ref string) ([]github.CheckRun, error)
	GetRefSHA(owner, repo, branch string) (string, error)
	GetRepository(owner, repo string) (*github.Repository, error)
	SearchAuthoredPullRequests() ([]github.PullRequest, error)
}

// Throttle is called before each weighted group of API requests. A nil
// throttle means no rate limiting.
type Throttle interface {
	Wait(weight int) error
}

// Throttle weights, proportional to the request cost of each fetch group.
const (
	weightList         = 1
	weightDirectFetch  = 1
	weightCheckRuns    = 1
	weightRef          = 1
	weightRepoMeta     = 1
	weightSearch       = 1
	weightFullActivity = 3
)
