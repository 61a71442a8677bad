// Package testutil provides shared mocks and fixtures for tests.
package testutil

import (
	"fmt"
	"sync"

	"github.com/kyleking/gh-prwatch/internal/github"
)

// MockGitHubClient implements the watcher.GitHubClient interface from
// in-memory maps, with per-method error injection and call counting.
type MockGitHubClient struct {
	mu sync.Mutex

	// OpenPRs is keyed by "owner/name".
	OpenPRs map[string][]github.PullRequest
	// PRs is keyed by "owner/name#number" and backs direct fetches.
	PRs map[string]*github.PullRequest
	// Comments and Reviews are keyed by "owner/name#number".
	Comments map[string][]github.Comment
	Reviews  map[string][]github.Review
	// CheckRuns is keyed by "owner/name@ref".
	CheckRuns map[string][]github.CheckRun
	// RefSHAs is keyed by "owner/name@branch".
	RefSHAs map[string]string
	// Repos is keyed by "owner/name".
	Repos map[string]*github.Repository
	// Authored backs the my-PRs search.
	Authored []github.PullRequest

	// Errs injects an error per method name.
	Errs map[string]error
	// Calls counts invocations per method name.
	Calls map[string]int
}

// NewMockGitHubClient creates an empty mock client.
func NewMockGitHubClient() *MockGitHubClient {
	return &MockGitHubClient{
		OpenPRs:   make(map[string][]github.PullRequest),
		PRs:       make(map[string]*github.PullRequest),
		Comments:  make(map[string][]github.Comment),
		Reviews:   make(map[string][]github.Review),
		CheckRuns: make(map[string][]github.CheckRun),
		RefSHAs:   make(map[string]string),
		Repos:     make(map[string]*github.Repository),
		Errs:      make(map[string]error),
		Calls:     make(map[string]int),
	}
}

// WithOpenPR adds an open PR to a repo's listing and direct-fetch map.
func (m *MockGitHubClient) WithOpenPR(repo string, pr github.PullRequest) *MockGitHubClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OpenPRs[repo] = append(m.OpenPRs[repo], pr)
	m.PRs[fmt.Sprintf("%s#%d", repo, pr.Number)] = &pr

	return m
}

// SetOpenPRs replaces a repo's open PR listing.
func (m *MockGitHubClient) SetOpenPRs(repo string, prs []github.PullRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OpenPRs[repo] = prs

	for i := range prs {
		pr := prs[i]
		m.PRs[fmt.Sprintf("%s#%d", repo, pr.Number)] = &pr
	}
}

// SetPR sets the direct-fetch result for one PR.
func (m *MockGitHubClient) SetPR(repo string, pr github.PullRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PRs[fmt.Sprintf("%s#%d", repo, pr.Number)] = &pr
}

// WithComments sets the comments for one PR.
func (m *MockGitHubClient) WithComments(repo string, number int, comments []github.Comment) *MockGitHubClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Comments[fmt.Sprintf("%s#%d", repo, number)] = comments

	return m
}

// WithReviews sets the reviews for one PR.
func (m *MockGitHubClient) WithReviews(repo string, number int, reviews []github.Review) *MockGitHubClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Reviews[fmt.Sprintf("%s#%d", repo, number)] = reviews

	return m
}

// WithCheckRuns sets the check runs for one commit ref.
func (m *MockGitHubClient) WithCheckRuns(repo, ref string, runs []github.CheckRun) *MockGitHubClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CheckRuns[repo+"@"+ref] = runs

	return m
}

// WithRefSHA sets a branch head.
func (m *MockGitHubClient) WithRefSHA(repo, branch, sha string) *MockGitHubClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RefSHAs[repo+"@"+branch] = sha

	return m
}

// WithRepository sets repository metadata.
func (m *MockGitHubClient) WithRepository(repo string, meta github.Repository) *MockGitHubClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Repos[repo] = &meta

	return m
}

// WithError injects an error for one method name (e.g. "ListOpenPullRequests").
func (m *MockGitHubClient) WithError(method string, err error) *MockGitHubClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Errs[method] = err

	return m
}

// ClearError removes an injected error.
func (m *MockGitHubClient) ClearError(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Errs, method)
}

// CallCount returns how many times a method was invoked.
func (m *MockGitHubClient) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Calls[method]
}

func (m *MockGitHubClient) enter(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls[method]++

	return m.Errs[method]
}

func (m *MockGitHubClient) ListOpenPullRequests(owner, repo string) ([]github.PullRequest, error) {
	if err := m.enter("ListOpenPullRequests"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]github.PullRequest(nil), m.OpenPRs[owner+"/"+repo]...), nil
}

func (m *MockGitHubClient) GetPullRequest(owner, repo string, number int) (*github.PullRequest, error) {
	if err := m.enter("GetPullRequest"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pr, ok := m.PRs[fmt.Sprintf("%s/%s#%d", owner, repo, number)]
	if !ok {
		return nil, fmt.Errorf("pull request %s/%s#%d not found", owner, repo, number)
	}

	copied := *pr

	return &copied, nil
}

func (m *MockGitHubClient) ListIssueComments(owner, repo string, number int) ([]github.Comment, error) {
	if err := m.enter("ListIssueComments"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]github.Comment(nil), m.Comments[fmt.Sprintf("%s/%s#%d", owner, repo, number)]...), nil
}

func (m *MockGitHubClient) ListReviews(owner, repo string, number int) ([]github.Review, error) {
	if err := m.enter("ListReviews"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]github.Review(nil), m.Reviews[fmt.Sprintf("%s/%s#%d", owner, repo, number)]...), nil
}

func (m *MockGitHubClient) ListCheckRuns(owner, repo, ref string) ([]github.CheckRun, error) {
	if err := m.enter("ListCheckRuns"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]github.CheckRun(nil), m.CheckRuns[owner+"/"+repo+"@"+ref]...), nil
}

func (m *MockGitHubClient) GetRefSHA(owner, repo, branch string) (string, error) {
	if err := m.enter("GetRefSHA"); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sha, ok := m.RefSHAs[owner+"/"+repo+"@"+branch]
	if !ok {
		return "", fmt.Errorf("ref %s/%s@%s not found", owner, repo, branch)
	}

	return sha, nil
}

func (m *MockGitHubClient) GetRepository(owner, repo string) (*github.Repository, error) {
	if err := m.enter("GetRepository"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.Repos[owner+"/"+repo]
	if !ok {
		return nil, fmt.Errorf("repository %s/%s not found", owner, repo)
	}

	copied := *meta

	return &copied, nil
}

func (m *MockGitHubClient) SearchAuthoredPullRequests() ([]github.PullRequest, error) {
	if err := m.enter("SearchAuthoredPullRequests"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]github.PullRequest(nil), m.Authored...), nil
}
