package watcher

import (
	"time"

	"github.com/kyleking/gh-prwatch/internal/github"
)

// prKey is the identity a pull request is tracked under.
type prKey struct {
	repo   RepoRef
	number int
}

// activityCache holds the per-PR comments, reviews, and check runs last
// fetched, keyed by their immutable ids. Comments and reviews only grow;
// check runs update in place.
type activityCache struct {
	comments       map[int64]github.Comment
	reviews        map[int64]github.Review
	checkRuns      map[int64]github.CheckRun
	checksComplete bool
}

func newActivityCache() *activityCache {
	return &activityCache{
		comments:  make(map[int64]github.Comment),
		reviews:   make(map[int64]github.Review),
		checkRuns: make(map[int64]github.CheckRun),
		// No cached runs means nothing is in flight.
		checksComplete: true,
	}
}

// absorbComments merges freshly fetched comments, returning the ones not
// previously cached in ascending id order.
func (a *activityCache) absorbComments(fresh []github.Comment) []github.Comment {
	var added []github.Comment

	for _, c := range fresh {
		if _, ok := a.comments[c.ID]; ok {
			continue
		}

		a.comments[c.ID] = c
		added = append(added, c)
	}

	sortCommentsByID(added)

	return added
}

// absorbReviews merges freshly fetched reviews, returning the new ones.
func (a *activityCache) absorbReviews(fresh []github.Review) []github.Review {
	var added []github.Review

	for _, r := range fresh {
		if _, ok := a.reviews[r.ID]; ok {
			continue
		}

		a.reviews[r.ID] = r
		added = append(added, r)
	}

	sortReviewsByID(added)

	return added
}

// absorbCheckRuns merges freshly fetched check runs, returning those that are
// new or whose (status, conclusion) pair changed, and recomputes
// checksComplete from the fresh list.
func (a *activityCache) absorbCheckRuns(fresh []github.CheckRun) []github.CheckRun {
	var changed []github.CheckRun

	for _, run := range fresh {
		prev, ok := a.checkRuns[run.ID]
		if ok && prev.Status == run.Status && prev.Conclusion == run.Conclusion {
			continue
		}

		a.checkRuns[run.ID] = run
		changed = append(changed, run)
	}

	sortCheckRunsByID(changed)
	a.checksComplete = checksComplete(fresh)

	return changed
}

// details exposes the cached activity for status classification.
func (a *activityCache) details() ActivityDetails {
	d := ActivityDetails{
		Comments:       make([]github.Comment, 0, len(a.comments)),
		Reviews:        make([]github.Review, 0, len(a.reviews)),
		CheckRuns:      make([]github.CheckRun, 0, len(a.checkRuns)),
		ChecksComplete: a.checksComplete,
	}

	for _, c := range a.comments {
		d.Comments = append(d.Comments, c)
	}

	for _, r := range a.reviews {
		d.Reviews = append(d.Reviews, r)
	}

	for _, run := range a.checkRuns {
		d.CheckRuns = append(d.CheckRuns, run)
	}

	sortCommentsByID(d.Comments)
	sortReviewsByID(d.Reviews)
	sortCheckRunsByID(d.CheckRuns)

	return d
}

// ActivityDetails is the activity view handed to the status classifier.
type ActivityDetails struct {
	Comments       []github.Comment
	Reviews        []github.Review
	CheckRuns      []github.CheckRun
	ChecksComplete bool
}

// prSnapshot is the last-known state for one tracked pull request.
type prSnapshot struct {
	pr       github.PullRequest
	activity *activityCache
	status   string
	lastSeen time.Time
}

// FetchStrategy selects how much activity to refetch for a tracked PR.
type FetchStrategy int

const (
	// FetchNone reuses the cached activity verbatim.
	FetchNone FetchStrategy = iota
	// FetchChecksOnly refetches only the check runs.
	FetchChecksOnly
	// FetchFull refetches comments, reviews, and check runs.
	FetchFull
)

// activityFetchStrategy decides how much of a tracked PR's activity must be
// refetched, from the cheap signals on the fresh PR listing. Pure function so
// the cost-control behavior is testable without I/O.
func activityFetchStrategy(prev *prSnapshot, fresh github.PullRequest) FetchStrategy {
	if prev == nil {
		return FetchFull
	}

	if !prev.pr.UpdatedAt.Equal(fresh.UpdatedAt) || prev.pr.Head.SHA != fresh.Head.SHA {
		return FetchFull
	}

	if !prev.activity.checksComplete {
		return FetchChecksOnly
	}

	return FetchNone
}

// snapshotStore is the authoritative in-memory state compared against on
// every poll. Owned by the watcher; all access goes through the watcher's
// mutex.
type snapshotStore struct {
	snapshots map[prKey]*prSnapshot
}

func newSnapshotStore() *snapshotStore {
	return &snapshotStore{snapshots: make(map[prKey]*prSnapshot)}
}

func (s *snapshotStore) get(key prKey) (*prSnapshot, bool) {
	snap, ok := s.snapshots[key]
	return snap, ok
}

func (s *snapshotStore) put(key prKey, snap *prSnapshot) {
	s.snapshots[key] = snap
}

func (s *snapshotStore) delete(key prKey) {
	delete(s.snapshots, key)
}

// numbersForRepo returns the tracked PR numbers for one repository.
func (s *snapshotStore) numbersForRepo(repo RepoRef) []int {
	var numbers []int

	for key := range s.snapshots {
		if key.repo == repo {
			numbers = append(numbers, key.number)
		}
	}

	sortInts(numbers)

	return numbers
}

// repos returns every repository with at least one tracked PR.
func (s *snapshotStore) repos() []RepoRef {
	seen := make(map[RepoRef]struct{})

	for key := range s.snapshots {
		seen[key.repo] = struct{}{}
	}

	refs := make([]RepoRef, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}

	sortRepoRefs(refs)

	return refs
}

// deleteRepo removes every snapshot tracked under the given repository.
func (s *snapshotStore) deleteRepo(repo RepoRef) {
	for key := range s.snapshots {
		if key.repo == repo {
			delete(s.snapshots, key)
		}
	}
}

// evictStale removes snapshots not seen since the cutoff. Safety net for PRs
// that vanish without a confirmable terminal fetch.
func (s *snapshotStore) evictStale(cutoff time.Time) {
	for key, snap := range s.snapshots {
		if snap.lastSeen.Before(cutoff) {
			delete(s.snapshots, key)
		}
	}
}

// list returns all tracked PRs sorted by repo then number.
func (s *snapshotStore) list() []WatchedPR {
	prs := make([]WatchedPR, 0, len(s.snapshots))

	for key, snap := range s.snapshots {
		prs = append(prs, WatchedPR{Repo: key.repo, PR: snap.pr, Status: snap.status})
	}

	sortWatchedPRs(prs)

	return prs
}
