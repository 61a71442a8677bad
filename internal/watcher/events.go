package watcher

import (
	"sort"
	"sync"

	werrors "github.com/kyleking/gh-prwatch/internal/errors"
	"github.com/kyleking/gh-prwatch/internal/github"
)

// EventKind tags each event variant.
type EventKind string

const (
	EventNewPR         EventKind = "new_pr"
	EventPRUpdated     EventKind = "pr_updated"
	EventComment       EventKind = "comment"
	EventReview        EventKind = "review"
	EventCheckRun      EventKind = "check_run"
	EventMerged        EventKind = "merged"
	EventClosed        EventKind = "closed"
	EventStatusChanged EventKind = "status_changed"
	EventPush          EventKind = "push"
	EventPollComplete  EventKind = "poll_complete"
)

// Event is the closed set of occurrences the watcher emits. Every variant
// carries its kind so the unified stream can dispatch without reflection.
type Event interface {
	Kind() EventKind
}

// FieldChange records one field-level metadata delta.
type FieldChange struct {
	From any
	To   any
}

// WatchedPR is one tracked pull request with its current derived status.
type WatchedPR struct {
	Repo   RepoRef
	PR     github.PullRequest
	Status string
}

// NewPREvent is emitted the first time an open PR is observed.
type NewPREvent struct {
	Repo RepoRef
	PR   github.PullRequest
}

// PRUpdatedEvent aggregates all metadata fields that changed in one poll.
type PRUpdatedEvent struct {
	Repo    RepoRef
	PR      github.PullRequest
	Changes map[string]FieldChange
}

// CommentEvent is emitted once per newly observed issue comment.
type CommentEvent struct {
	Repo    RepoRef
	PR      github.PullRequest
	Comment github.Comment
}

// ReviewEvent is emitted once per newly observed review.
type ReviewEvent struct {
	Repo   RepoRef
	PR     github.PullRequest
	Review github.Review
}

// CheckRunEvent is emitted when a check run appears or its status or
// conclusion changes.
type CheckRunEvent struct {
	Repo     RepoRef
	PR       github.PullRequest
	CheckRun github.CheckRun
}

// MergedEvent is emitted when a tracked PR is confirmed merged.
type MergedEvent struct {
	Repo RepoRef
	PR   github.PullRequest
}

// ClosedEvent is emitted when a tracked PR is confirmed closed without merging.
type ClosedEvent struct {
	Repo RepoRef
	PR   github.PullRequest
}

// StatusChangedEvent is emitted when the classifier-derived status transitions.
type StatusChangedEvent struct {
	Repo           RepoRef
	PR             github.PullRequest
	PreviousStatus string
	Status         string
}

// PushEvent is emitted when a watched repository's default branch head moves.
type PushEvent struct {
	Repo        RepoRef
	Branch      string
	SHA         string
	PreviousSHA string
}

// PollCompleteEvent summarizes the snapshot list after a full poll cycle.
type PollCompleteEvent struct {
	PRs []WatchedPR
}

func (NewPREvent) Kind() EventKind         { return EventNewPR }
func (PRUpdatedEvent) Kind() EventKind     { return EventPRUpdated }
func (CommentEvent) Kind() EventKind       { return EventComment }
func (ReviewEvent) Kind() EventKind        { return EventReview }
func (CheckRunEvent) Kind() EventKind      { return EventCheckRun }
func (MergedEvent) Kind() EventKind        { return EventMerged }
func (ClosedEvent) Kind() EventKind        { return EventClosed }
func (StatusChangedEvent) Kind() EventKind { return EventStatusChanged }
func (PushEvent) Kind() EventKind          { return EventPush }
func (PollCompleteEvent) Kind() EventKind  { return EventPollComplete }

// eventBus holds the per-kind and unified subscriber registries. All events
// flow through emit so both views observe the same occurrences in the same
// order.
type eventBus struct {
	mu     sync.Mutex
	nextID int
	byKind map[EventKind]map[int]func(Event)
	all    map[int]func(Event)
	errs   map[int]func(error)
}

func newEventBus() *eventBus {
	return &eventBus{
		byKind: make(map[EventKind]map[int]func(Event)),
		all:    make(map[int]func(Event)),
		errs:   make(map[int]func(error)),
	}
}

// subscribe registers a listener for one event kind and returns its
// unsubscribe function.
func (b *eventBus) subscribe(kind EventKind, fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	listeners, ok := b.byKind[kind]
	if !ok {
		listeners = make(map[int]func(Event))
		b.byKind[kind] = listeners
	}

	listeners[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.byKind[kind], id)
	}
}

// subscribeAll registers a listener for the unified tagged stream.
func (b *eventBus) subscribeAll(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.all[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.all, id)
	}
}

// subscribeErrors registers an error listener.
func (b *eventBus) subscribeErrors(fn func(error)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.errs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.errs, id)
	}
}

// hasListeners reports whether any listener would observe events of the given
// kind, counting unified-stream subscribers.
func (b *eventBus) hasListeners(kind EventKind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.byKind[kind]) > 0 || len(b.all) > 0
}

// emit dispatches one event to the matching per-kind listeners and then the
// unified listeners. Each invocation is isolated: a panicking listener is
// reported through the error registry without affecting the others.
func (b *eventBus) emit(ev Event) {
	b.mu.Lock()

	kind := ev.Kind()
	fns := make([]func(Event), 0, len(b.byKind[kind])+len(b.all))

	for _, id := range sortedKeys(b.byKind[kind]) {
		fns = append(fns, b.byKind[kind][id])
	}

	for _, id := range sortedKeys(b.all) {
		fns = append(fns, b.all[id])
	}

	b.mu.Unlock()

	for _, fn := range fns {
		b.invoke(fn, ev)
	}
}

func (b *eventBus) invoke(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.reportError(&werrors.ListenerPanicError{EventKind: string(ev.Kind()), Value: r})
		}
	}()

	fn(ev)
}

// reportError delivers an error to all error listeners. A panicking error
// listener is dropped silently rather than recursing.
func (b *eventBus) reportError(err error) {
	b.mu.Lock()

	fns := make([]func(error), 0, len(b.errs))
	for _, id := range sortedKeys(b.errs) {
		fns = append(fns, b.errs[id])
	}

	b.mu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() { _ = recover() }()
			fn(err)
		}()
	}
}

// sortedKeys keeps listener invocation in subscription order.
func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Ints(keys)

	return keys
}
