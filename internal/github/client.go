// Package github wraps the GitHub REST API operations the watcher needs.
package github

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/cli/go-gh/v2/pkg/api"
)

// Client wraps the GitHub REST API client.
type Client struct {
	rest *api.RESTClient
}

// NewClient creates a new GitHub API client using ambient gh authentication.
func NewClient() (*Client, error) {
	rest, err := api.DefaultRESTClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create REST client: %w", err)
	}

	return &Client{rest: rest}, nil
}

// ListOpenPullRequests fetches all open pull requests for a repository.
func (c *Client) ListOpenPullRequests(owner, repo string) ([]PullRequest, error) {
	path := fmt.Sprintf("repos/%s/%s/pulls?state=open&per_page=100", owner, repo)

	var prs []PullRequest
	if err := c.get(path, &prs); err != nil {
		return nil, fmt.Errorf("failed to list open pull requests for %s/%s: %w", owner, repo, err)
	}

	return prs, nil
}

// GetPullRequest fetches a single pull request by number.
func (c *Client) GetPullRequest(owner, repo string, number int) (*PullRequest, error) {
	path := fmt.Sprintf("repos/%s/%s/pulls/%d", owner, repo, number)

	var pr PullRequest
	if err := c.get(path, &pr); err != nil {
		return nil, fmt.Errorf("failed to get pull request %s/%s#%d: %w", owner, repo, number, err)
	}

	return &pr, nil
}

// ListIssueComments fetches the issue comments on a pull request.
func (c *Client) ListIssueComments(owner, repo string, number int) ([]Comment, error) {
	path := fmt.Sprintf("repos/%s/%s/issues/%d/comments?per_page=100", owner, repo, number)

	var comments []Comment
	if err := c.get(path, &comments); err != nil {
		return nil, fmt.Errorf("failed to list comments for %s/%s#%d: %w", owner, repo, number, err)
	}

	return comments, nil
}

// ListReviews fetches the reviews on a pull request.
func (c *Client) ListReviews(owner, repo string, number int) ([]Review, error) {
	path := fmt.Sprintf("repos/%s/%s/pulls/%d/reviews?per_page=100", owner, repo, number)

	var reviews []Review
	if err := c.get(path, &reviews); err != nil {
		return nil, fmt.Errorf("failed to list reviews for %s/%s#%d: %w", owner, repo, number, err)
	}

	return reviews, nil
}

// ListCheckRuns fetches the check runs for a commit ref.
func (c *Client) ListCheckRuns(owner, repo, ref string) ([]CheckRun, error) {
	path := fmt.Sprintf("repos/%s/%s/commits/%s/check-runs?per_page=100", owner, repo, url.PathEscape(ref))

	var resp CheckRunsResponse
	if err := c.get(path, &resp); err != nil {
		return nil, fmt.Errorf("failed to list check runs for %s/%s@%s: %w", owner, repo, ref, err)
	}

	return resp.CheckRuns, nil
}

// GetRefSHA fetches the commit SHA a branch ref currently points at.
func (c *Client) GetRefSHA(owner, repo, branch string) (string, error) {
	path := fmt.Sprintf("repos/%s/%s/commits/%s", owner, repo, url.PathEscape(branch))

	var commit RefCommit
	if err := c.get(path, &commit); err != nil {
		return "", fmt.Errorf("failed to get head of %s/%s@%s: %w", owner, repo, branch, err)
	}

	return commit.SHA, nil
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(owner, repo string) (*Repository, error) {
	path := fmt.Sprintf("repos/%s/%s", owner, repo)

	var r Repository
	if err := c.get(path, &r); err != nil {
		return nil, fmt.Errorf("failed to get repository %s/%s: %w", owner, repo, err)
	}

	return &r, nil
}

// SearchAuthoredPullRequests finds open pull requests authored by the
// authenticated user across all repositories, resolving each search hit to a
// full pull request.
func (c *Client) SearchAuthoredPullRequests() ([]PullRequest, error) {
	query := url.QueryEscape("is:pr is:open author:@me archived:false")
	path := "search/issues?per_page=100&q=" + query

	var resp SearchIssuesResponse
	if err := c.get(path, &resp); err != nil {
		return nil, fmt.Errorf("failed to search authored pull requests: %w", err)
	}

	prs := make([]PullRequest, 0, len(resp.Items))

	for _, item := range resp.Items {
		owner, repo, ok := splitRepositoryURL(item.RepositoryURL)
		if !ok {
			continue
		}

		pr, err := c.GetPullRequest(owner, repo, item.Number)
		if err != nil {
			return nil, err
		}

		prs = append(prs, *pr)
	}

	return prs, nil
}

func (c *Client) get(path string, out any) error {
	resp, err := c.rest.Request("GET", path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// splitRepositoryURL extracts owner and repo from an API repository URL like
// https://api.github.com/repos/owner/name.
func splitRepositoryURL(repoURL string) (string, string, bool) {
	idx := strings.Index(repoURL, "/repos/")
	if idx < 0 {
		return "", "", false
	}

	parts := strings.Split(repoURL[idx+len("/repos/"):], "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}

	return parts[0], parts[1], true
}
