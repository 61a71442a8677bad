// Package app implements the terminal dashboard consuming watcher events.
package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/kyleking/gh-prwatch/internal/browser"
	"github.com/kyleking/gh-prwatch/internal/watcher"
)

// feedLimit caps the number of recent events kept for display.
const feedLimit = 100

// eventMsg wraps a watcher event for the bubbletea loop.
type eventMsg struct {
	event watcher.Event
}

// errMsg wraps a watcher error for the bubbletea loop.
type errMsg struct {
	err error
}

// App is the dashboard model. It subscribes to the watcher's unified stream
// and renders the tracked PRs next to a feed of recent events.
type App struct {
	watcher *watcher.Watcher
	keys    KeyMap

	msgs        chan tea.Msg
	unsubscribe []func()

	prs    []watcher.WatchedPR
	feed   []string
	cursor int

	filterInput textinput.Model
	filtering   bool
	filter      string

	width  int
	height int
}

// New creates the dashboard model, seeded with the watcher's initial
// snapshot list.
func New(w *watcher.Watcher, initial []watcher.WatchedPR) *App {
	ti := textinput.New()
	ti.Placeholder = "Type to filter..."
	ti.Prompt = "/ "
	ti.CharLimit = 64
	ti.Width = 40

	a := &App{
		watcher:     w,
		keys:        DefaultKeyMap(),
		msgs:        make(chan tea.Msg, 256),
		prs:         initial,
		filterInput: ti,
	}

	a.unsubscribe = append(a.unsubscribe,
		w.OnEvent(func(ev watcher.Event) { a.send(eventMsg{event: ev}) }),
		w.OnError(func(err error) { a.send(errMsg{err: err}) }),
	)

	return a
}

// send forwards a message to the bubbletea loop, dropping it if the program
// is not draining (e.g. during shutdown).
func (a *App) send(msg tea.Msg) {
	select {
	case a.msgs <- msg:
	default:
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.waitForMsg()
}

func (a *App) waitForMsg() tea.Cmd {
	return func() tea.Msg {
		return <-a.msgs
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

		return a, nil

	case eventMsg:
		a.applyEvent(msg.event)
		return a, a.waitForMsg()

	case errMsg:
		a.pushFeed("error: " + msg.err.Error())
		return a, a.waitForMsg()

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.filtering {
		switch msg.String() {
		case "enter":
			a.filtering = false
			a.filter = a.filterInput.Value()
			a.clampCursor()

			return a, nil
		case "esc":
			a.filtering = false
			a.filterInput.SetValue(a.filter)

			return a, nil
		}

		var cmd tea.Cmd
		a.filterInput, cmd = a.filterInput.Update(msg)

		return a, cmd
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		a.shutdown()
		return a, tea.Quit

	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}

	case key.Matches(msg, a.keys.Down):
		if a.cursor < len(a.visiblePRs())-1 {
			a.cursor++
		}

	case key.Matches(msg, a.keys.Filter):
		a.filtering = true
		a.filterInput.SetValue(a.filter)
		a.filterInput.Focus()

		return a, textinput.Blink

	case key.Matches(msg, a.keys.Escape):
		a.filter = ""
		a.filterInput.SetValue("")
		a.clampCursor()

	case key.Matches(msg, a.keys.Open):
		if pr, ok := a.selectedPR(); ok && pr.PR.HTMLURL != "" {
			if err := browser.Open(pr.PR.HTMLURL); err != nil {
				a.pushFeed("error: " + err.Error())
			}
		}

	case key.Matches(msg, a.keys.Copy):
		if pr, ok := a.selectedPR(); ok && pr.PR.HTMLURL != "" {
			if err := clipboard.WriteAll(pr.PR.HTMLURL); err != nil {
				a.pushFeed("error: " + err.Error())
			} else {
				a.pushFeed(fmt.Sprintf("copied %s#%d URL", pr.Repo, pr.PR.Number))
			}
		}
	}

	return a, nil
}

func (a *App) applyEvent(ev watcher.Event) {
	if complete, ok := ev.(watcher.PollCompleteEvent); ok {
		a.prs = complete.PRs
		a.clampCursor()

		return
	}

	a.pushFeed(describeEvent(ev))
}

func (a *App) pushFeed(line string) {
	a.feed = append(a.feed, line)
	if len(a.feed) > feedLimit {
		a.feed = a.feed[len(a.feed)-feedLimit:]
	}
}

// visiblePRs applies the fuzzy filter to the tracked PR list.
func (a *App) visiblePRs() []watcher.WatchedPR {
	if a.filter == "" {
		return a.prs
	}

	haystack := make([]string, len(a.prs))
	for i, pr := range a.prs {
		haystack[i] = fmt.Sprintf("%s#%d %s", pr.Repo, pr.PR.Number, pr.PR.Title)
	}

	matches := fuzzy.Find(a.filter, haystack)

	visible := make([]watcher.WatchedPR, 0, len(matches))
	for _, m := range matches {
		visible = append(visible, a.prs[m.Index])
	}

	return visible
}

func (a *App) selectedPR() (watcher.WatchedPR, bool) {
	visible := a.visiblePRs()
	if a.cursor < 0 || a.cursor >= len(visible) {
		return watcher.WatchedPR{}, false
	}

	return visible[a.cursor], true
}

func (a *App) clampCursor() {
	if n := len(a.visiblePRs()); a.cursor >= n {
		a.cursor = n - 1
	}

	if a.cursor < 0 {
		a.cursor = 0
	}
}

func (a *App) shutdown() {
	for _, unsub := range a.unsubscribe {
		unsub()
	}

	a.watcher.Stop()
}

// describeEvent renders one feed line per event.
func describeEvent(ev watcher.Event) string {
	switch ev := ev.(type) {
	case watcher.NewPREvent:
		return fmt.Sprintf("new PR %s#%d: %s", ev.Repo, ev.PR.Number, ev.PR.Title)
	case watcher.PRUpdatedEvent:
		fields := make([]string, 0, len(ev.Changes))
		for field := range ev.Changes {
			fields = append(fields, field)
		}

		sort.Strings(fields)

		return fmt.Sprintf("%s#%d updated: %s", ev.Repo, ev.PR.Number, strings.Join(fields, ", "))
	case watcher.CommentEvent:
		return fmt.Sprintf("%s commented on %s#%d", ev.Comment.User.Login, ev.Repo, ev.PR.Number)
	case watcher.ReviewEvent:
		return fmt.Sprintf("%s reviewed %s#%d: %s", ev.Review.User.Login, ev.Repo, ev.PR.Number, ev.Review.State)
	case watcher.CheckRunEvent:
		if ev.CheckRun.Conclusion != "" {
			return fmt.Sprintf("check %s on %s#%d: %s", ev.CheckRun.Name, ev.Repo, ev.PR.Number, ev.CheckRun.Conclusion)
		}

		return fmt.Sprintf("check %s on %s#%d: %s", ev.CheckRun.Name, ev.Repo, ev.PR.Number, ev.CheckRun.Status)
	case watcher.MergedEvent:
		return fmt.Sprintf("merged %s#%d", ev.Repo, ev.PR.Number)
	case watcher.ClosedEvent:
		return fmt.Sprintf("closed %s#%d", ev.Repo, ev.PR.Number)
	case watcher.StatusChangedEvent:
		return fmt.Sprintf("%s#%d: %s → %s", ev.Repo, ev.PR.Number, ev.PreviousStatus, ev.Status)
	case watcher.PushEvent:
		return fmt.Sprintf("push to %s@%s: %.8s", ev.Repo, ev.Branch, ev.SHA)
	default:
		return string(ev.Kind())
	}
}
