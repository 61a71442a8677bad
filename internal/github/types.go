package github

import "time"

// Check run status and conclusion values from the GitHub API.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"

	ConclusionSuccess = "success"
	ConclusionFailure = "failure"
)

// Pull request states from the GitHub API.
const (
	PRStateOpen   = "open"
	PRStateClosed = "closed"
)

// Review states from the GitHub API.
const (
	ReviewApproved         = "APPROVED"
	ReviewChangesRequested = "CHANGES_REQUESTED"
	ReviewCommented        = "COMMENTED"
)

// User represents a GitHub account.
type User struct {
	Login string `json:"login"`
}

// Label represents an issue or PR label.
type Label struct {
	Name string `json:"name"`
}

// Branch represents one side of a pull request.
type Branch struct {
	Ref  string      `json:"ref"`
	SHA  string      `json:"sha"`
	Repo *Repository `json:"repo"`
}

// PullRequest represents the subset of pull request data the watcher inspects.
type PullRequest struct {
	Number         int        `json:"number"`
	Title          string     `json:"title"`
	State          string     `json:"state"`
	Draft          bool       `json:"draft"`
	User           User       `json:"user"`
	Labels         []Label    `json:"labels"`
	MergeableState string     `json:"mergeable_state"`
	MergedAt       *time.Time `json:"merged_at"`
	ClosedAt       *time.Time `json:"closed_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	HTMLURL        string     `json:"html_url"`
	Head           Branch     `json:"head"`
	Base           Branch     `json:"base"`
}

// LabelNames returns the PR's label names in their API order.
func (pr PullRequest) LabelNames() []string {
	if len(pr.Labels) == 0 {
		return nil
	}

	names := make([]string, len(pr.Labels))
	for i, l := range pr.Labels {
		names[i] = l.Name
	}

	return names
}

// Comment represents an issue comment on a pull request.
type Comment struct {
	ID        int64     `json:"id"`
	User      User      `json:"user"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	HTMLURL   string    `json:"html_url"`
}

// Review represents a pull request review.
type Review struct {
	ID          int64     `json:"id"`
	User        User      `json:"user"`
	State       string    `json:"state"`
	Body        string    `json:"body"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// CheckRun represents a check run on a commit.
type CheckRun struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	HeadSHA    string `json:"head_sha"`
}

// IsCompleted returns true if the check run reached a terminal state.
func (c CheckRun) IsCompleted() bool {
	return c.Status == StatusCompleted
}

// Repository represents repository metadata.
type Repository struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Owner         User   `json:"owner"`
	DefaultBranch string `json:"default_branch"`
}

// CheckRunsResponse is the envelope returned by the check-runs endpoint.
type CheckRunsResponse struct {
	TotalCount int        `json:"total_count"`
	CheckRuns  []CheckRun `json:"check_runs"`
}

// RefCommit is the envelope returned by the commits endpoint for a ref.
type RefCommit struct {
	SHA string `json:"sha"`
}

// SearchIssuesResponse is the envelope returned by the issue search endpoint.
type SearchIssuesResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []SearchItem `json:"items"`
}

// SearchItem is a single issue-search hit. Only PR hits carry RepositoryURL
// segments usable for a follow-up PR fetch.
type SearchItem struct {
	Number        int    `json:"number"`
	RepositoryURL string `json:"repository_url"`
}
