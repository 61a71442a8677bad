package watcher_test

import (
	"errors"
	"testing"
	"time"

	werrors "github.com/kyleking/gh-prwatch/internal/errors"
	"github.com/kyleking/gh-prwatch/internal/github"
	"github.com/kyleking/gh-prwatch/internal/testutil"
	"github.com/kyleking/gh-prwatch/internal/watcher"
)

// pollAgain drives one more deterministic poll cycle. Start runs its first
// poll synchronously, so stop-then-start replaces waiting for the ticker.
func pollAgain(w *watcher.Watcher) []watcher.WatchedPR {
	w.Stop()
	return w.Start()
}

func newWatcher(t *testing.T, client *testutil.MockGitHubClient, opts watcher.Options) *watcher.Watcher {
	t.Helper()

	w, err := watcher.New(client, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t.Cleanup(w.Stop)

	return w
}

func TestFirstPollEmitsOnlyNewPR(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser")).
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 2, "Fix cache")).
		WithComments("octo/widgets", 1, []github.Comment{testutil.CommentFixture(10, "alice", "looks good")}).
		WithReviews("octo/widgets", 2, []github.Review{testutil.ReviewFixture(20, "bob", github.ReviewApproved)})

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})

	var newPRs []watcher.NewPREvent

	var comments []watcher.CommentEvent

	var reviews []watcher.ReviewEvent

	var completes []watcher.PollCompleteEvent

	w.OnNewPR(func(ev watcher.NewPREvent) { newPRs = append(newPRs, ev) })
	w.OnComment(func(ev watcher.CommentEvent) { comments = append(comments, ev) })
	w.OnReview(func(ev watcher.ReviewEvent) { reviews = append(reviews, ev) })
	w.OnPollComplete(func(ev watcher.PollCompleteEvent) { completes = append(completes, ev) })

	initial := w.Start()

	if len(initial) != 2 {
		t.Fatalf("expected 2 initial PRs, got %d", len(initial))
	}

	if len(newPRs) != 2 {
		t.Fatalf("expected 2 new_pr events, got %d", len(newPRs))
	}

	if newPRs[0].PR.Number != 1 || newPRs[1].PR.Number != 2 {
		t.Errorf("expected new_pr for #1 then #2, got #%d, #%d", newPRs[0].PR.Number, newPRs[1].PR.Number)
	}

	// Pre-existing activity is cache seed, not news.
	if len(comments) != 0 || len(reviews) != 0 {
		t.Errorf("first poll leaked activity events: %d comments, %d reviews", len(comments), len(reviews))
	}

	if len(completes) != 1 || len(completes[0].PRs) != 2 {
		t.Fatalf("expected one poll_complete with 2 PRs, got %v", completes)
	}
}

func TestUnchangedPRSkipsActivityFetches(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser"))

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})
	w.Start()

	pollAgain(w)
	pollAgain(w)

	if got := client.CallCount("ListOpenPullRequests"); got != 3 {
		t.Errorf("expected 3 list calls, got %d", got)
	}

	// Activity was fetched once, on first observation.
	for _, method := range []string{"ListIssueComments", "ListReviews", "ListCheckRuns"} {
		if got := client.CallCount(method); got != 1 {
			t.Errorf("%s: expected 1 call, got %d", method, got)
		}
	}
}

func TestIncompleteChecksRefetchChecksOnly(t *testing.T) {
	pr := testutil.PRFixture("octo/widgets", 1, "Add parser")
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", pr).
		WithCheckRuns("octo/widgets", pr.Head.SHA, []github.CheckRun{
			testutil.CheckRunFixture(301, "ci", github.StatusInProgress, ""),
		})

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})

	var checkEvents []watcher.CheckRunEvent

	w.OnCheckRun(func(ev watcher.CheckRunEvent) { checkEvents = append(checkEvents, ev) })

	w.Start()

	// Metadata unchanged but checks incomplete: only the check runs refetch.
	pollAgain(w)

	if got := client.CallCount("ListCheckRuns"); got != 2 {
		t.Errorf("expected 2 check run fetches, got %d", got)
	}

	if got := client.CallCount("ListIssueComments"); got != 1 {
		t.Errorf("expected 1 comment fetch, got %d", got)
	}

	if len(checkEvents) != 0 {
		t.Errorf("unchanged run should not emit, got %v", checkEvents)
	}

	client.WithCheckRuns("octo/widgets", pr.Head.SHA, []github.CheckRun{
		testutil.CheckRunFixture(301, "ci", github.StatusCompleted, github.ConclusionSuccess),
	})
	pollAgain(w)

	if len(checkEvents) != 1 {
		t.Fatalf("expected 1 check_run event, got %d", len(checkEvents))
	}

	if checkEvents[0].CheckRun.Status != github.StatusCompleted || checkEvents[0].CheckRun.Conclusion != github.ConclusionSuccess {
		t.Errorf("unexpected check run payload: %+v", checkEvents[0].CheckRun)
	}

	// All runs completed: the next quiet cycle costs nothing beyond the list.
	before := client.CallCount("ListCheckRuns")

	pollAgain(w)

	if got := client.CallCount("ListCheckRuns"); got != before {
		t.Errorf("completed checks still refetched: %d -> %d", before, got)
	}
}

func TestDraftToggleEmitsPRUpdated(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.DraftPRFixture("octo/widgets", 5, "WIP: refactor"))

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})

	var updates []watcher.PRUpdatedEvent

	w.OnPRUpdated(func(ev watcher.PRUpdatedEvent) { updates = append(updates, ev) })

	w.Start()

	ready := testutil.PRFixture("octo/widgets", 5, "WIP: refactor")
	ready.UpdatedAt = testutil.BaseTime.Add(time.Minute)
	client.SetOpenPRs("octo/widgets", []github.PullRequest{ready})

	pollAgain(w)

	if len(updates) != 1 {
		t.Fatalf("expected 1 pr_updated event, got %d", len(updates))
	}

	change, ok := updates[0].Changes["draft"]
	if !ok {
		t.Fatalf("expected draft change, got %v", updates[0].Changes)
	}

	if change.From != true || change.To != false {
		t.Errorf("draft change: got %v -> %v", change.From, change.To)
	}
}

func TestNewCommentEmittedOncePerOccurrence(t *testing.T) {
	pr := testutil.PRFixture("octo/widgets", 1, "Add parser")
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", pr).
		WithComments("octo/widgets", 1, []github.Comment{testutil.CommentFixture(10, "alice", "first pass")})

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})

	var comments []watcher.CommentEvent

	w.OnComment(func(ev watcher.CommentEvent) { comments = append(comments, ev) })

	w.Start()

	// New comment arrives; updated_at moves, forcing a full refetch.
	updated := pr
	updated.UpdatedAt = testutil.BaseTime.Add(time.Minute)
	client.SetOpenPRs("octo/widgets", []github.PullRequest{updated})
	client.WithComments("octo/widgets", 1, []github.Comment{
		testutil.CommentFixture(10, "alice", "first pass"),
		testutil.CommentFixture(11, "bob", "second pass"),
	})

	pollAgain(w)
	pollAgain(w)

	if len(comments) != 1 {
		t.Fatalf("expected exactly 1 comment event, got %d", len(comments))
	}

	if comments[0].Comment.ID != 11 {
		t.Errorf("expected comment 11, got %d", comments[0].Comment.ID)
	}
}

func TestMergedPRConfirmedOnce(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser"))

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})

	var merged []watcher.MergedEvent

	var closed []watcher.ClosedEvent

	var completes []watcher.PollCompleteEvent

	w.OnMerged(func(ev watcher.MergedEvent) { merged = append(merged, ev) })
	w.OnClosed(func(ev watcher.ClosedEvent) { closed = append(closed, ev) })
	w.OnPollComplete(func(ev watcher.PollCompleteEvent) { completes = append(completes, ev) })

	w.Start()

	client.SetOpenPRs("octo/widgets", nil)
	client.SetPR("octo/widgets", testutil.MergedPRFixture("octo/widgets", 1, "Add parser"))

	pollAgain(w)
	pollAgain(w)

	if len(merged) != 1 {
		t.Fatalf("expected exactly 1 merged event, got %d", len(merged))
	}

	if len(closed) != 0 {
		t.Errorf("merged PR also reported closed: %v", closed)
	}

	last := completes[len(completes)-1]
	if len(last.PRs) != 0 {
		t.Errorf("merged PR still in poll_complete: %v", last.PRs)
	}

	if got := w.WatchedPRs(); len(got) != 0 {
		t.Errorf("merged PR still tracked: %v", got)
	}
}

func TestClosedWithoutMergeEmitsClosed(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 2, "Fix cache"))

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})

	var merged []watcher.MergedEvent

	var closed []watcher.ClosedEvent

	w.OnMerged(func(ev watcher.MergedEvent) { merged = append(merged, ev) })
	w.OnClosed(func(ev watcher.ClosedEvent) { closed = append(closed, ev) })

	w.Start()

	client.SetOpenPRs("octo/widgets", nil)
	client.SetPR("octo/widgets", testutil.ClosedPRFixture("octo/widgets", 2, "Fix cache"))

	pollAgain(w)

	if len(closed) != 1 || len(merged) != 0 {
		t.Errorf("expected 1 closed, 0 merged; got %d closed, %d merged", len(closed), len(merged))
	}
}

func TestDisappearanceConfirmationFailureRetainsSnapshot(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser"))

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})

	var merged []watcher.MergedEvent

	var errs []error

	w.OnMerged(func(ev watcher.MergedEvent) { merged = append(merged, ev) })
	w.OnError(func(err error) { errs = append(errs, err) })

	w.Start()

	client.SetOpenPRs("octo/widgets", nil)
	client.WithError("GetPullRequest", errors.New("502 bad gateway"))

	pollAgain(w)

	if len(merged) != 0 {
		t.Errorf("unconfirmed disappearance emitted merged: %v", merged)
	}

	if got := w.WatchedPRs(); len(got) != 1 {
		t.Fatalf("snapshot should survive failed confirmation, got %v", got)
	}

	if len(errs) == 0 {
		t.Error("expected the confirmation failure to be reported")
	}

	// Next cycle retries and succeeds.
	client.ClearError("GetPullRequest")
	client.SetPR("octo/widgets", testutil.MergedPRFixture("octo/widgets", 1, "Add parser"))

	pollAgain(w)

	if len(merged) != 1 {
		t.Errorf("expected merged after successful confirmation, got %d", len(merged))
	}
}

func TestClassifierTransitions(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser"))

	status := "needs_review"

	w := newWatcher(t, client, watcher.Options{
		Repos: []string{"octo/widgets"},
		Classify: func(watcher.WatchedPR, watcher.ActivityDetails) (string, error) {
			return status, nil
		},
	})

	var transitions []watcher.StatusChangedEvent

	w.OnStatusChanged(func(ev watcher.StatusChangedEvent) { transitions = append(transitions, ev) })

	initial := w.Start()

	if len(transitions) != 0 {
		t.Fatalf("first observation emitted a transition: %v", transitions)
	}

	if initial[0].Status != "needs_review" {
		t.Errorf("expected initial status resolved, got %q", initial[0].Status)
	}

	status = "approved"

	pollAgain(w)
	pollAgain(w)

	if len(transitions) != 1 {
		t.Fatalf("expected exactly 1 transition, got %d", len(transitions))
	}

	if transitions[0].PreviousStatus != "needs_review" || transitions[0].Status != "approved" {
		t.Errorf("transition: got %q -> %q", transitions[0].PreviousStatus, transitions[0].Status)
	}
}

func TestClassifierErrorRetainsStatus(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser"))

	fail := false

	w := newWatcher(t, client, watcher.Options{
		Repos: []string{"octo/widgets"},
		Classify: func(watcher.WatchedPR, watcher.ActivityDetails) (string, error) {
			if fail {
				return "", errors.New("rule engine broken")
			}

			return "needs_review", nil
		},
	})

	var transitions []watcher.StatusChangedEvent

	var errs []error

	w.OnStatusChanged(func(ev watcher.StatusChangedEvent) { transitions = append(transitions, ev) })
	w.OnError(func(err error) { errs = append(errs, err) })

	w.Start()

	fail = true

	prs := pollAgain(w)

	if prs[0].Status != "needs_review" {
		t.Errorf("status should survive classifier failure, got %q", prs[0].Status)
	}

	if len(transitions) != 0 {
		t.Errorf("classifier failure emitted a transition: %v", transitions)
	}

	var hookErr *werrors.HookError
	if len(errs) == 0 || !errors.As(errs[len(errs)-1], &hookErr) {
		t.Fatalf("expected HookError, got %v", errs)
	}
}

func TestPushDetection(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser")).
		WithRefSHA("octo/widgets", "main", "sha-one")

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})

	var pushes []watcher.PushEvent

	w.OnPush(func(ev watcher.PushEvent) { pushes = append(pushes, ev) })

	w.Start()

	// First observation establishes the baseline silently.
	if len(pushes) != 0 {
		t.Fatalf("baseline observation emitted push: %v", pushes)
	}

	client.WithRefSHA("octo/widgets", "main", "sha-two")

	pollAgain(w)

	if len(pushes) != 1 {
		t.Fatalf("expected 1 push event, got %d", len(pushes))
	}

	ev := pushes[0]
	if ev.Branch != "main" || ev.PreviousSHA != "sha-one" || ev.SHA != "sha-two" {
		t.Errorf("unexpected push payload: %+v", ev)
	}

	// Unchanged head stays quiet.
	pollAgain(w)

	if len(pushes) != 1 {
		t.Errorf("unchanged head emitted push, got %d events", len(pushes))
	}
}

func TestNoPushListenerSkipsRefFetch(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser")).
		WithRefSHA("octo/widgets", "main", "sha-one")

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})
	w.OnNewPR(func(watcher.NewPREvent) {})

	w.Start()
	pollAgain(w)

	if got := client.CallCount("GetRefSHA"); got != 0 {
		t.Errorf("expected no ref fetches without a push listener, got %d", got)
	}
}

func TestRemoveAndReAddRepoEmitsNoSpuriousPush(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser")).
		WithRefSHA("octo/widgets", "main", "sha-one")

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})

	var pushes []watcher.PushEvent

	var newPRs []watcher.NewPREvent

	w.OnPush(func(ev watcher.PushEvent) { pushes = append(pushes, ev) })
	w.OnNewPR(func(ev watcher.NewPREvent) { newPRs = append(newPRs, ev) })

	w.Start()

	if err := w.RemoveRepo("octo/widgets"); err != nil {
		t.Fatalf("RemoveRepo: %v", err)
	}

	if got := w.WatchedPRs(); len(got) != 0 {
		t.Fatalf("removal should purge snapshots, got %v", got)
	}

	// Head moves while unwatched, then the repo comes back.
	client.WithRefSHA("octo/widgets", "main", "sha-two")

	if err := w.AddRepo("octo/widgets"); err != nil {
		t.Fatalf("AddRepo: %v", err)
	}

	pollAgain(w)

	if len(pushes) != 0 {
		t.Errorf("re-added repo emitted push from stale baseline: %v", pushes)
	}

	// Tracking restarts from scratch: the PR is new again.
	if len(newPRs) != 2 {
		t.Errorf("expected new_pr on first watch and again after re-add, got %d", len(newPRs))
	}

	// The fresh baseline still detects subsequent pushes.
	client.WithRefSHA("octo/widgets", "main", "sha-three")

	pollAgain(w)

	if len(pushes) != 1 || pushes[0].PreviousSHA != "sha-two" {
		t.Errorf("expected push from fresh baseline, got %v", pushes)
	}
}

func TestListFailureDoesNotSuppressPush(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser")).
		WithRefSHA("octo/widgets", "main", "sha-one")

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})

	var pushes []watcher.PushEvent

	var errs []error

	w.OnPush(func(ev watcher.PushEvent) { pushes = append(pushes, ev) })
	w.OnError(func(err error) { errs = append(errs, err) })

	w.Start()

	client.WithError("ListOpenPullRequests", errors.New("500 server error"))
	client.WithRefSHA("octo/widgets", "main", "sha-two")

	pollAgain(w)

	if len(pushes) != 1 {
		t.Errorf("push suppressed by PR listing failure, got %d events", len(pushes))
	}

	var apiErr *werrors.APIError
	if len(errs) == 0 || !errors.As(errs[0], &apiErr) {
		t.Fatalf("expected APIError, got %v", errs)
	}

	// Snapshots survive the failed cycle.
	if got := w.WatchedPRs(); len(got) != 1 {
		t.Errorf("snapshots lost on listing failure: %v", got)
	}
}

func TestPartialActivityFetchRetriesNextCycle(t *testing.T) {
	pr := testutil.PRFixture("octo/widgets", 1, "Add parser")
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", pr)

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})

	var comments []watcher.CommentEvent

	w.OnComment(func(ev watcher.CommentEvent) { comments = append(comments, ev) })

	w.Start()

	// Activity arrives but the comment fetch fails mid-refetch.
	updated := pr
	updated.UpdatedAt = testutil.BaseTime.Add(time.Minute)
	client.SetOpenPRs("octo/widgets", []github.PullRequest{updated})
	client.WithComments("octo/widgets", 1, []github.Comment{testutil.CommentFixture(11, "bob", "found a bug")})
	client.WithError("ListIssueComments", errors.New("503 unavailable"))

	pollAgain(w)

	if len(comments) != 0 {
		t.Fatalf("failed fetch produced comment events: %v", comments)
	}

	// The fingerprint was not advanced, so the next cycle refetches and
	// recovers the missed comment.
	client.ClearError("ListIssueComments")

	pollAgain(w)

	if len(comments) != 1 || comments[0].Comment.ID != 11 {
		t.Errorf("expected comment 11 recovered on retry, got %v", comments)
	}
}

func TestStaleSnapshotsEvicted(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser"))

	w := newWatcher(t, client, watcher.Options{
		Repos:            []string{"octo/widgets"},
		StalePRThreshold: 30 * time.Millisecond,
	})

	w.Start()

	// The PR disappears and its terminal state is unconfirmable.
	client.SetOpenPRs("octo/widgets", nil)
	client.WithError("GetPullRequest", errors.New("502 bad gateway"))

	pollAgain(w)

	if got := w.WatchedPRs(); len(got) != 1 {
		t.Fatalf("snapshot evicted before threshold: %v", got)
	}

	time.Sleep(50 * time.Millisecond)

	pollAgain(w)

	if got := w.WatchedPRs(); len(got) != 0 {
		t.Errorf("stale snapshot survived eviction: %v", got)
	}
}

func TestDiscoverReposUnion(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser")).
		WithOpenPR("octo/extra", testutil.PRFixture("octo/extra", 9, "Discovered work"))

	w := newWatcher(t, client, watcher.Options{
		Repos:         []string{"octo/widgets"},
		DiscoverRepos: func() ([]string, error) { return []string{"octo/extra"}, nil },
	})

	var newPRs []watcher.NewPREvent

	w.OnNewPR(func(ev watcher.NewPREvent) { newPRs = append(newPRs, ev) })

	initial := w.Start()

	if len(initial) != 2 {
		t.Fatalf("expected PRs from static and discovered repos, got %v", initial)
	}

	if len(newPRs) != 2 {
		t.Errorf("expected 2 new_pr events, got %d", len(newPRs))
	}
}

func TestDiscoverHookFailureIsIsolated(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser"))

	w := newWatcher(t, client, watcher.Options{
		Repos:         []string{"octo/widgets"},
		DiscoverRepos: func() ([]string, error) { return nil, errors.New("registry down") },
	})

	var errs []error

	w.OnError(func(err error) { errs = append(errs, err) })

	initial := w.Start()

	if len(initial) != 1 {
		t.Errorf("static repos should still poll when discovery fails, got %v", initial)
	}

	var hookErr *werrors.HookError
	if len(errs) != 1 || !errors.As(errs[0], &hookErr) {
		t.Fatalf("expected one HookError, got %v", errs)
	}
}

func TestMyPRsTracksAuthoredOutsideWatchList(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser"))
	client.Authored = []github.PullRequest{testutil.PRFixture("octo/elsewhere", 42, "Drive-by fix")}

	w := newWatcher(t, client, watcher.Options{
		Repos: []string{"octo/widgets"},
		MyPRs: true,
	})

	var merged []watcher.MergedEvent

	w.OnMerged(func(ev watcher.MergedEvent) { merged = append(merged, ev) })

	initial := w.Start()

	if len(initial) != 2 {
		t.Fatalf("expected authored PR tracked alongside watch list, got %v", initial)
	}

	if initial[0].Repo.String() != "octo/elsewhere" {
		t.Errorf("expected octo/elsewhere first in sorted list, got %v", initial[0].Repo)
	}

	// The authored PR merges: it leaves the search results, and the
	// disappearance is confirmed directly even though the repo was never on
	// the watch list.
	client.Authored = nil
	client.SetPR("octo/elsewhere", testutil.MergedPRFixture("octo/elsewhere", 42, "Drive-by fix"))

	pollAgain(w)

	if len(merged) != 1 || merged[0].Repo.String() != "octo/elsewhere" {
		t.Fatalf("expected merged confirmation for authored PR, got %v", merged)
	}

	if got := w.WatchedPRs(); len(got) != 1 {
		t.Errorf("expected only the watch-list PR to remain, got %v", got)
	}
}

func TestUnifiedStreamMatchesPerKind(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser")).
		WithRefSHA("octo/widgets", "main", "sha-one")

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})

	perKind := 0

	var unified []watcher.EventKind

	w.OnNewPR(func(watcher.NewPREvent) { perKind++ })
	w.OnPollComplete(func(watcher.PollCompleteEvent) { perKind++ })
	w.OnEvent(func(ev watcher.Event) { unified = append(unified, ev.Kind()) })

	w.Start()

	if perKind != 2 {
		t.Fatalf("expected 2 per-kind deliveries, got %d", perKind)
	}

	if len(unified) != 2 {
		t.Fatalf("expected 2 unified deliveries, got %d: %v", len(unified), unified)
	}

	if unified[0] != watcher.EventNewPR || unified[1] != watcher.EventPollComplete {
		t.Errorf("unified order wrong: %v", unified)
	}
}

func TestStartIsIdempotentWhileRunning(t *testing.T) {
	client := testutil.NewMockGitHubClient().
		WithOpenPR("octo/widgets", testutil.PRFixture("octo/widgets", 1, "Add parser"))

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})

	first := w.Start()
	second := w.Start()

	if client.CallCount("ListOpenPullRequests") != 1 {
		t.Errorf("second Start on a running watcher polled again: %d calls", client.CallCount("ListOpenPullRequests"))
	}

	if len(first) != 1 || len(second) != 1 {
		t.Errorf("expected both Starts to report the snapshot, got %d and %d", len(first), len(second))
	}

	w.Stop()
	w.Stop() // idempotent
}

func TestStopBeforeStart(t *testing.T) {
	client := testutil.NewMockGitHubClient()

	w := newWatcher(t, client, watcher.Options{Repos: []string{"octo/widgets"}})
	w.Stop()

	if got := client.CallCount("ListOpenPullRequests"); got != 0 {
		t.Errorf("Stop before Start triggered polling: %d calls", got)
	}
}

func TestNewRejectsMalformedRepo(t *testing.T) {
	if _, err := watcher.New(testutil.NewMockGitHubClient(), watcher.Options{Repos: []string{"not a repo"}}); err == nil {
		t.Error("expected error for malformed repo identifier")
	}

	if _, err := watcher.New(nil, watcher.Options{}); err == nil {
		t.Error("expected error for nil client")
	}
}

func TestAddRepoRejectsMalformedInput(t *testing.T) {
	w := newWatcher(t, testutil.NewMockGitHubClient(), watcher.Options{})

	if err := w.AddRepo("garbage"); err == nil {
		t.Error("expected error for malformed repo identifier")
	}

	if err := w.AddRepo("Octo/Widgets"); err != nil {
		t.Fatalf("AddRepo: %v", err)
	}

	repos := w.Repos()
	if len(repos) != 1 || repos[0].String() != "octo/widgets" {
		t.Errorf("expected normalized octo/widgets, got %v", repos)
	}
}
