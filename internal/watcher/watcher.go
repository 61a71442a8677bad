package watcher

import (
	"fmt"
	"sync"
	"time"

	werrors "github.com/kyleking/gh-prwatch/internal/errors"
	"github.com/kyleking/gh-prwatch/internal/github"
)

// PollInterval is the default interval between API polls.
const PollInterval = 30 * time.Second

// Classifier maps a pull request and its activity to a caller-defined status
// string. The watcher tracks transitions of the returned value across polls.
type Classifier func(pr WatchedPR, details ActivityDetails) (string, error)

// Options configures a Watcher.
type Options struct {
	// Repos is the static watch list, in any form ParseRepoRef accepts.
	Repos []string
	// Interval is the poll period; PollInterval when zero.
	Interval time.Duration
	// MyPRs also tracks pull requests authored by the authenticated user
	// outside the configured repo list, discovered via search.
	MyPRs bool
	// DiscoverRepos supplies additional repos each cycle, unioned with the
	// static list.
	DiscoverRepos func() ([]string, error)
	// Classify derives a status string per PR per poll. No classifier means
	// status stays empty.
	Classify Classifier
	// StalePRThreshold evicts snapshots not seen for this long. Zero disables
	// eviction.
	StalePRThreshold time.Duration
	// Throttle is waited on before every weighted group of API requests.
	Throttle Throttle
}

// Watcher polls a set of GitHub repositories for pull-request activity and
// emits typed lifecycle events computed by diffing each poll against the
// previous snapshot.
type Watcher struct {
	client GitHubClient
	opts   Options
	bus    *eventBus
	push   *pushDetector

	mu    sync.Mutex
	repos *repoSet
	store *snapshotStore

	pollMu    sync.Mutex
	isPolling bool

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	ticker  *time.Ticker
	wg      sync.WaitGroup
}

// New creates a Watcher. Malformed repo identifiers fail here: they indicate
// programmer error, not transient failure.
func New(client GitHubClient, opts Options) (*Watcher, error) {
	if client == nil {
		return nil, fmt.Errorf("watcher requires a GitHub client")
	}

	if opts.Interval <= 0 {
		opts.Interval = PollInterval
	}

	repos := newRepoSet()

	for _, input := range opts.Repos {
		ref, err := ParseRepoRef(input)
		if err != nil {
			return nil, err
		}

		repos.add(ref)
	}

	return &Watcher{
		client: client,
		opts:   opts,
		bus:    newEventBus(),
		push:   newPushDetector(client, opts.Throttle),
		repos:  repos,
		store:  newSnapshotStore(),
	}, nil
}

// Start runs an immediate poll, then schedules repeating polls. It returns
// the initial snapshot list so callers can seed state synchronously. Calling
// Start on a running watcher just returns the current snapshot list.
func (w *Watcher) Start() []WatchedPR {
	w.runMu.Lock()
	if w.running {
		w.runMu.Unlock()
		return w.WatchedPRs()
	}

	w.running = true
	w.stop = make(chan struct{})
	stop := w.stop
	w.runMu.Unlock()

	initial := w.poll()

	w.runMu.Lock()
	if w.running {
		w.ticker = time.NewTicker(w.opts.Interval)
		w.wg.Add(1)

		go w.pollLoop(w.ticker, stop)
	}
	w.runMu.Unlock()

	return initial
}

// Stop prevents future polls from starting. An in-flight poll runs to
// completion. Idempotent and safe before Start.
func (w *Watcher) Stop() {
	w.runMu.Lock()
	if !w.running {
		w.runMu.Unlock()
		return
	}

	w.running = false
	close(w.stop)

	if w.ticker != nil {
		w.ticker.Stop()
		w.ticker = nil
	}
	w.runMu.Unlock()

	w.wg.Wait()
}

func (w *Watcher) pollLoop(ticker *time.Ticker, stop chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// AddRepo adds a repository to the watch list, taking effect with the next
// cycle. No-op if already watched.
func (w *Watcher) AddRepo(input string) error {
	ref, err := ParseRepoRef(input)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.repos.add(ref)

	return nil
}

// RemoveRepo removes a repository and tears down all of its state: tracked
// snapshots, push baseline, and default-branch cache. Re-adding is
// indistinguishable from first-time watching.
func (w *Watcher) RemoveRepo(input string) error {
	ref, err := ParseRepoRef(input)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.repos.remove(ref)
	w.store.deleteRepo(ref)
	w.mu.Unlock()

	w.push.forget(ref)

	return nil
}

// Repos returns the normalized static watch list.
func (w *Watcher) Repos() []RepoRef {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.repos.list()
}

// WatchedPRs returns all tracked pull requests with their current status,
// sorted by repo then number.
func (w *Watcher) WatchedPRs() []WatchedPR {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.store.list()
}

// Subscriptions. Each returns its unsubscribe function.

func (w *Watcher) OnNewPR(fn func(NewPREvent)) func() {
	return w.bus.subscribe(EventNewPR, func(ev Event) { fn(ev.(NewPREvent)) })
}

func (w *Watcher) OnPRUpdated(fn func(PRUpdatedEvent)) func() {
	return w.bus.subscribe(EventPRUpdated, func(ev Event) { fn(ev.(PRUpdatedEvent)) })
}

func (w *Watcher) OnComment(fn func(CommentEvent)) func() {
	return w.bus.subscribe(EventComment, func(ev Event) { fn(ev.(CommentEvent)) })
}

func (w *Watcher) OnReview(fn func(ReviewEvent)) func() {
	return w.bus.subscribe(EventReview, func(ev Event) { fn(ev.(ReviewEvent)) })
}

func (w *Watcher) OnCheckRun(fn func(CheckRunEvent)) func() {
	return w.bus.subscribe(EventCheckRun, func(ev Event) { fn(ev.(CheckRunEvent)) })
}

func (w *Watcher) OnMerged(fn func(MergedEvent)) func() {
	return w.bus.subscribe(EventMerged, func(ev Event) { fn(ev.(MergedEvent)) })
}

func (w *Watcher) OnClosed(fn func(ClosedEvent)) func() {
	return w.bus.subscribe(EventClosed, func(ev Event) { fn(ev.(ClosedEvent)) })
}

func (w *Watcher) OnStatusChanged(fn func(StatusChangedEvent)) func() {
	return w.bus.subscribe(EventStatusChanged, func(ev Event) { fn(ev.(StatusChangedEvent)) })
}

func (w *Watcher) OnPush(fn func(PushEvent)) func() {
	return w.bus.subscribe(EventPush, func(ev Event) { fn(ev.(PushEvent)) })
}

func (w *Watcher) OnPollComplete(fn func(PollCompleteEvent)) func() {
	return w.bus.subscribe(EventPollComplete, func(ev Event) { fn(ev.(PollCompleteEvent)) })
}

// OnEvent subscribes to the unified stream: every event, tagged by Kind, in
// the same order the per-kind listeners observe them.
func (w *Watcher) OnEvent(fn func(Event)) func() {
	return w.bus.subscribeAll(fn)
}

// OnError subscribes to recovered errors: API failures, listener panics, and
// hook failures. No error stops the scheduler.
func (w *Watcher) OnError(fn func(error)) func() {
	return w.bus.subscribeErrors(fn)
}

// pollCycle carries per-cycle repo provenance so mid-cycle removals cannot be
// resurrected by a stale write-back.
type pollCycle struct {
	now        time.Time
	discovered map[RepoRef]bool
	searched   map[RepoRef][]github.PullRequest
}

// repoLive reports whether a repo may still hold state. Caller holds w.mu.
func (w *Watcher) repoLive(cy *pollCycle, repo RepoRef) bool {
	return w.repos.contains(repo) || cy.discovered[repo] || cy.searched[repo] != nil
}

// poll runs one complete cycle. At most one cycle executes at a time: a tick
// arriving while a cycle is in flight is skipped entirely.
func (w *Watcher) poll() []WatchedPR {
	w.pollMu.Lock()
	if w.isPolling {
		w.pollMu.Unlock()
		return nil
	}

	w.isPolling = true
	w.pollMu.Unlock()

	defer func() {
		w.pollMu.Lock()
		w.isPolling = false
		w.pollMu.Unlock()
	}()

	cy := &pollCycle{
		now:        time.Now(),
		discovered: make(map[RepoRef]bool),
		searched:   make(map[RepoRef][]github.PullRequest),
	}

	w.discoverRepos(cy)
	w.searchAuthoredPRs(cy)

	w.mu.Lock()
	static := w.repos.list()
	tracked := w.store.repos()
	w.mu.Unlock()

	watched := make(map[RepoRef]bool, len(static))
	for _, repo := range static {
		watched[repo] = true
	}

	for repo := range cy.discovered {
		watched[repo] = true
	}

	repos := make(map[RepoRef]bool, len(watched))
	for repo := range watched {
		repos[repo] = true
	}

	for repo := range cy.searched {
		repos[repo] = true
	}

	for _, repo := range tracked {
		repos[repo] = true
	}

	order := make([]RepoRef, 0, len(repos))
	for repo := range repos {
		order = append(order, repo)
	}

	sortRepoRefs(order)

	detectPush := w.bus.hasListeners(EventPush)

	for _, repo := range order {
		// PR diffing and push detection are independent error boundaries:
		// a failure in one must not suppress signals from the other.
		w.processRepo(cy, repo, watched[repo])

		if detectPush && watched[repo] {
			w.detectPush(repo)
		}
	}

	w.mu.Lock()
	if w.opts.StalePRThreshold > 0 {
		w.store.evictStale(cy.now.Add(-w.opts.StalePRThreshold))
	}

	prs := w.store.list()
	w.mu.Unlock()

	w.bus.emit(PollCompleteEvent{PRs: prs})

	return prs
}

// discoverRepos invokes the caller's discovery hook and merges its results
// into the cycle.
func (w *Watcher) discoverRepos(cy *pollCycle) {
	if w.opts.DiscoverRepos == nil {
		return
	}

	inputs, err := w.opts.DiscoverRepos()
	if err != nil {
		w.bus.reportError(&werrors.HookError{Hook: "discover repos", Err: err})
		return
	}

	for _, input := range inputs {
		ref, err := ParseRepoRef(input)
		if err != nil {
			w.bus.reportError(&werrors.HookError{Hook: "discover repos", Err: err})
			continue
		}

		cy.discovered[ref] = true
	}
}

// searchAuthoredPRs fetches the authenticated user's open PRs and groups them
// by repository for this cycle.
func (w *Watcher) searchAuthoredPRs(cy *pollCycle) {
	if !w.opts.MyPRs {
		return
	}

	if err := throttleWait(w.opts.Throttle, weightSearch); err != nil {
		w.reportAPIError("throttle wait", RepoRef{}, 0, err)
		return
	}

	prs, err := w.client.SearchAuthoredPullRequests()
	if err != nil {
		w.reportAPIError("search authored pull requests", RepoRef{}, 0, err)
		return
	}

	for _, pr := range prs {
		if pr.Base.Repo == nil {
			continue
		}

		ref, err := ParseRepoRef(pr.Base.Repo.FullName)
		if err != nil {
			continue
		}

		cy.searched[ref] = append(cy.searched[ref], pr)
	}
}

// processRepo diffs one repository's open PRs against the snapshot store.
// watched repos get a list fetch; repos known only from search (or holding
// leftover snapshots) are evaluated against the search results alone.
func (w *Watcher) processRepo(cy *pollCycle, repo RepoRef, fetchList bool) {
	var open []github.PullRequest

	if fetchList {
		if err := throttleWait(w.opts.Throttle, weightList); err != nil {
			w.reportAPIError("throttle wait", repo, 0, err)
			return
		}

		prs, err := w.client.ListOpenPullRequests(repo.Owner, repo.Name)
		if err != nil {
			// Snapshots are retained; this cycle loses only this repo's
			// PR signals.
			w.reportAPIError("list open pull requests", repo, 0, err)
			return
		}

		open = prs
	}

	open = mergePRs(open, cy.searched[repo])

	w.push.harvestDefaultBranch(repo, open)

	seen := make(map[int]bool, len(open))

	for _, pr := range open {
		seen[pr.Number] = true
		w.processPR(cy, repo, pr)
	}

	w.mu.Lock()
	numbers := w.store.numbersForRepo(repo)
	w.mu.Unlock()

	for _, number := range numbers {
		if !seen[number] {
			w.confirmTerminal(repo, number)
		}
	}
}

// processPR applies the selective-fetch decision, diffs one PR against its
// snapshot, updates the store, and emits the resulting events.
func (w *Watcher) processPR(cy *pollCycle, repo RepoRef, fresh github.PullRequest) {
	key := prKey{repo: repo, number: fresh.Number}

	w.mu.Lock()
	prev, tracked := w.store.get(key)
	strategy := FetchFull
	if tracked {
		strategy = activityFetchStrategy(prev, fresh)
	}
	w.mu.Unlock()

	var (
		comments  []github.Comment
		reviews   []github.Review
		checkRuns []github.CheckRun

		fetchedComments  bool
		fetchedReviews   bool
		fetchedCheckRuns bool
	)

	switch strategy {
	case FetchFull:
		if err := throttleWait(w.opts.Throttle, weightFullActivity); err != nil {
			w.reportAPIError("throttle wait", repo, fresh.Number, err)
			break
		}

		// Partial failures keep the signals that did arrive.
		if c, err := w.client.ListIssueComments(repo.Owner, repo.Name, fresh.Number); err != nil {
			w.reportAPIError("list comments", repo, fresh.Number, err)
		} else {
			comments, fetchedComments = c, true
		}

		if r, err := w.client.ListReviews(repo.Owner, repo.Name, fresh.Number); err != nil {
			w.reportAPIError("list reviews", repo, fresh.Number, err)
		} else {
			reviews, fetchedReviews = r, true
		}

		if runs, err := w.client.ListCheckRuns(repo.Owner, repo.Name, fresh.Head.SHA); err != nil {
			w.reportAPIError("list check runs", repo, fresh.Number, err)
		} else {
			checkRuns, fetchedCheckRuns = runs, true
		}

	case FetchChecksOnly:
		if err := throttleWait(w.opts.Throttle, weightCheckRuns); err != nil {
			w.reportAPIError("throttle wait", repo, fresh.Number, err)
			break
		}

		if runs, err := w.client.ListCheckRuns(repo.Owner, repo.Name, fresh.Head.SHA); err != nil {
			w.reportAPIError("list check runs", repo, fresh.Number, err)
		} else {
			checkRuns, fetchedCheckRuns = runs, true
		}

	case FetchNone:
	}

	var events []Event

	w.mu.Lock()

	prev, tracked = w.store.get(key)
	isNew := !tracked

	var snap *prSnapshot

	if isNew {
		if !w.repoLive(cy, repo) {
			// Removed mid-cycle; do not resurrect.
			w.mu.Unlock()
			return
		}

		snap = &prSnapshot{pr: fresh, activity: newActivityCache(), lastSeen: cy.now}

		// Seed the cache silently: the first observation emits new_pr only.
		snap.activity.absorbComments(comments)
		snap.activity.absorbReviews(reviews)
		snap.activity.absorbCheckRuns(checkRuns)

		w.store.put(key, snap)
		events = append(events, NewPREvent{Repo: repo, PR: fresh})
	} else {
		snap = prev

		if changes := diffPRFields(snap.pr, fresh); changes != nil {
			events = append(events, PRUpdatedEvent{Repo: repo, PR: fresh, Changes: changes})
		}

		if fetchedComments {
			for _, c := range snap.activity.absorbComments(comments) {
				events = append(events, CommentEvent{Repo: repo, PR: fresh, Comment: c})
			}
		}

		if fetchedReviews {
			for _, r := range snap.activity.absorbReviews(reviews) {
				events = append(events, ReviewEvent{Repo: repo, PR: fresh, Review: r})
			}
		}

		if fetchedCheckRuns {
			for _, run := range snap.activity.absorbCheckRuns(checkRuns) {
				events = append(events, CheckRunEvent{Repo: repo, PR: fresh, CheckRun: run})
			}
		}

		prevPR := snap.pr
		snap.pr = fresh
		snap.lastSeen = cy.now

		if strategy == FetchFull && (!fetchedComments || !fetchedReviews || !fetchedCheckRuns) {
			// A partial full fetch must not look up to date, or the missed
			// activity would be skipped forever. Keeping the old change
			// fingerprints forces a retry next cycle.
			snap.pr.UpdatedAt = prevPR.UpdatedAt
			snap.pr.Head.SHA = prevPR.Head.SHA
		}
	}

	details := snap.activity.details()
	prevStatus := snap.status
	w.mu.Unlock()

	for _, ev := range events {
		w.bus.emit(ev)
	}

	w.classify(repo, fresh, key, prevStatus, details, isNew)
}

// classify runs the caller's classifier and tracks status transitions. The
// first observation resolves a status without emitting a transition.
func (w *Watcher) classify(repo RepoRef, pr github.PullRequest, key prKey, prevStatus string, details ActivityDetails, isNew bool) {
	if w.opts.Classify == nil {
		return
	}

	status, err := w.opts.Classify(WatchedPR{Repo: repo, PR: pr, Status: prevStatus}, details)
	if err != nil {
		// Previous status is retained; no transition is emitted.
		w.bus.reportError(&werrors.HookError{Hook: "classify", Err: err})
		return
	}

	changed := false

	w.mu.Lock()
	if snap, ok := w.store.get(key); ok {
		changed = !isNew && snap.status != status
		prevStatus = snap.status
		snap.status = status
	}
	w.mu.Unlock()

	if changed {
		w.bus.emit(StatusChangedEvent{Repo: repo, PR: pr, PreviousStatus: prevStatus, Status: status})
	}
}

// confirmTerminal re-fetches a PR that disappeared from the open list to
// learn its authoritative final state. On fetch failure the snapshot is
// retained for re-evaluation: disappearance alone does not prove terminality.
func (w *Watcher) confirmTerminal(repo RepoRef, number int) {
	if err := throttleWait(w.opts.Throttle, weightDirectFetch); err != nil {
		w.reportAPIError("throttle wait", repo, number, err)
		return
	}

	pr, err := w.client.GetPullRequest(repo.Owner, repo.Name, number)
	if err != nil {
		w.reportAPIError("confirm pull request state", repo, number, err)
		return
	}

	w.mu.Lock()
	w.store.delete(prKey{repo: repo, number: number})
	w.mu.Unlock()

	if pr.MergedAt != nil {
		w.bus.emit(MergedEvent{Repo: repo, PR: *pr})
	} else {
		w.bus.emit(ClosedEvent{Repo: repo, PR: *pr})
	}
}

// detectPush checks one repository's default-branch head. Errors here never
// abort PR processing, and vice versa.
func (w *Watcher) detectPush(repo RepoRef) {
	ev, err := w.push.check(repo)
	if err != nil {
		w.reportAPIError("detect push", repo, 0, err)
		return
	}

	if ev != nil {
		w.bus.emit(*ev)
	}
}

func (w *Watcher) reportAPIError(operation string, repo RepoRef, number int, err error) {
	w.bus.reportError(&werrors.APIError{
		Operation: operation,
		Repo:      repo.String(),
		Number:    number,
		Err:       err,
	})
}

// mergePRs unions two PR lists by number, preferring entries from the first.
func mergePRs(primary, extra []github.PullRequest) []github.PullRequest {
	if len(extra) == 0 {
		return primary
	}

	seen := make(map[int]bool, len(primary))
	for _, pr := range primary {
		seen[pr.Number] = true
	}

	merged := primary

	for _, pr := range extra {
		if !seen[pr.Number] {
			merged = append(merged, pr)
		}
	}

	return merged
}
