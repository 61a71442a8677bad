package testutil

import (
	"strconv"
	"time"

	"github.com/kyleking/gh-prwatch/internal/github"
)

// BaseTime anchors fixture timestamps so tests are deterministic.
var BaseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// PRFixture creates an open pull request with sensible defaults.
func PRFixture(repo string, number int, title string) github.PullRequest {
	return github.PullRequest{
		Number:         number,
		Title:          title,
		State:          github.PRStateOpen,
		MergeableState: "clean",
		UpdatedAt:      BaseTime,
		HTMLURL:        "https://github.com/" + repo + "/pull/" + strconv.Itoa(number),
		Head: github.Branch{
			Ref: "feature",
			SHA: "abc123",
		},
		Base: github.Branch{
			Ref: "main",
			Repo: &github.Repository{
				FullName:      repo,
				DefaultBranch: "main",
			},
		},
	}
}

// DraftPRFixture creates a draft pull request.
func DraftPRFixture(repo string, number int, title string) github.PullRequest {
	pr := PRFixture(repo, number, title)
	pr.Draft = true

	return pr
}

// MergedPRFixture creates a closed, merged pull request.
func MergedPRFixture(repo string, number int, title string) github.PullRequest {
	pr := PRFixture(repo, number, title)
	pr.State = github.PRStateClosed
	mergedAt := BaseTime.Add(time.Hour)
	pr.MergedAt = &mergedAt
	pr.ClosedAt = &mergedAt

	return pr
}

// ClosedPRFixture creates a closed, unmerged pull request.
func ClosedPRFixture(repo string, number int, title string) github.PullRequest {
	pr := PRFixture(repo, number, title)
	pr.State = github.PRStateClosed
	closedAt := BaseTime.Add(time.Hour)
	pr.ClosedAt = &closedAt

	return pr
}

// CommentFixture creates an issue comment.
func CommentFixture(id int64, login, body string) github.Comment {
	return github.Comment{
		ID:        id,
		User:      github.User{Login: login},
		Body:      body,
		CreatedAt: BaseTime,
	}
}

// ReviewFixture creates a review.
func ReviewFixture(id int64, login, state string) github.Review {
	return github.Review{
		ID:          id,
		User:        github.User{Login: login},
		State:       state,
		SubmittedAt: BaseTime,
	}
}

// CheckRunFixture creates a check run.
func CheckRunFixture(id int64, name, status, conclusion string) github.CheckRun {
	return github.CheckRun{
		ID:         id,
		Name:       name,
		Status:     status,
		Conclusion: conclusion,
		HeadSHA:    "abc123",
	}
}
