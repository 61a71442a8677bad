package watcher

import (
	"sort"

	"github.com/kyleking/gh-prwatch/internal/github"
)

// diffPRFields computes the field-level metadata deltas the watcher reports:
// draft state, labels, and mergeable state. Returns nil when nothing changed.
func diffPRFields(prev, fresh github.PullRequest) map[string]FieldChange {
	changes := make(map[string]FieldChange)

	if prev.Draft != fresh.Draft {
		changes["draft"] = FieldChange{From: prev.Draft, To: fresh.Draft}
	}

	prevLabels := sortedLabels(prev)
	freshLabels := sortedLabels(fresh)

	if !stringSlicesEqual(prevLabels, freshLabels) {
		changes["labels"] = FieldChange{From: prevLabels, To: freshLabels}
	}

	if prev.MergeableState != fresh.MergeableState {
		changes["mergeable_state"] = FieldChange{From: prev.MergeableState, To: fresh.MergeableState}
	}

	if len(changes) == 0 {
		return nil
	}

	return changes
}

// checksComplete reports whether every check run reached a terminal state.
// An empty list counts as complete: nothing can still be in flight.
func checksComplete(runs []github.CheckRun) bool {
	for _, run := range runs {
		if !run.IsCompleted() {
			return false
		}
	}

	return true
}

func sortedLabels(pr github.PullRequest) []string {
	names := pr.LabelNames()
	sort.Strings(names)

	return names
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func sortCommentsByID(comments []github.Comment) {
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
}

func sortReviewsByID(reviews []github.Review) {
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].ID < reviews[j].ID })
}

func sortCheckRunsByID(runs []github.CheckRun) {
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID < runs[j].ID })
}

func sortInts(values []int) {
	sort.Ints(values)
}

func sortWatchedPRs(prs []WatchedPR) {
	sort.Slice(prs, func(i, j int) bool {
		if prs[i].Repo != prs[j].Repo {
			if prs[i].Repo.Owner != prs[j].Repo.Owner {
				return prs[i].Repo.Owner < prs[j].Repo.Owner
			}

			return prs[i].Repo.Name < prs[j].Repo.Name
		}

		return prs[i].PR.Number < prs[j].PR.Number
	})
}
