package watcher

import (
	"sync"

	"github.com/kyleking/gh-prwatch/internal/github"
)

// pushBaseline is the last-observed default-branch head for one repository.
type pushBaseline struct {
	branch string
	sha    string
}

// pushDetector tracks each watched repository's default-branch head commit,
// independently of PR processing. The first observation per repo establishes
// a baseline without emitting an event.
type pushDetector struct {
	client   GitHubClient
	throttle Throttle

	mu        sync.Mutex
	baselines map[RepoRef]pushBaseline
	// branches caches the resolved default branch name per repo for the
	// watcher's lifetime.
	branches map[RepoRef]string
	// gen increments on every forget; an in-flight check abandons its
	// write-back when the generation moved, so a removed-and-re-added repo
	// always starts from a fresh baseline.
	gen uint64
}

func newPushDetector(client GitHubClient, throttle Throttle) *pushDetector {
	return &pushDetector{
		client:    client,
		throttle:  throttle,
		baselines: make(map[RepoRef]pushBaseline),
		branches:  make(map[RepoRef]string),
	}
}

// harvestDefaultBranch records a default branch name available for free in an
// open PR listing's base-repository metadata, so the dedicated metadata fetch
// is only paid for repos that never supplied one.
func (d *pushDetector) harvestDefaultBranch(repo RepoRef, prs []github.PullRequest) {
	for _, pr := range prs {
		if pr.Base.Repo == nil || pr.Base.Repo.DefaultBranch == "" {
			continue
		}

		d.mu.Lock()
		if _, ok := d.branches[repo]; !ok {
			d.branches[repo] = pr.Base.Repo.DefaultBranch
		}
		d.mu.Unlock()

		return
	}
}

// check fetches the repo's default-branch head and compares it against the
// baseline. Returns a PushEvent when the head moved, nil on first observation
// or no change.
func (d *pushDetector) check(repo RepoRef) (*PushEvent, error) {
	d.mu.Lock()
	startGen := d.gen
	branch, haveBranch := d.branches[repo]
	d.mu.Unlock()

	if !haveBranch {
		resolved, err := d.resolveDefaultBranch(repo)
		if err != nil {
			return nil, err
		}

		branch = resolved
	}

	if err := throttleWait(d.throttle, weightRef); err != nil {
		return nil, err
	}

	sha, err := d.client.GetRefSHA(repo.Owner, repo.Name, branch)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.gen != startGen {
		// Repo was forgotten while we were fetching; do not resurrect state.
		return nil, nil
	}

	d.branches[repo] = branch
	prev, had := d.baselines[repo]
	d.baselines[repo] = pushBaseline{branch: branch, sha: sha}

	if !had || prev.sha == sha {
		return nil, nil
	}

	return &PushEvent{Repo: repo, Branch: branch, SHA: sha, PreviousSHA: prev.sha}, nil
}

func (d *pushDetector) resolveDefaultBranch(repo RepoRef) (string, error) {
	if err := throttleWait(d.throttle, weightRepoMeta); err != nil {
		return "", err
	}

	meta, err := d.client.GetRepository(repo.Owner, repo.Name)
	if err != nil {
		return "", err
	}

	branch := meta.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	return branch, nil
}

// forget drops the baseline and branch cache for a repo so a re-add starts
// fresh instead of diffing against detached state.
func (d *pushDetector) forget(repo RepoRef) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.baselines, repo)
	delete(d.branches, repo)
	d.gen++
}

func throttleWait(t Throttle, weight int) error {
	if t == nil {
		return nil
	}

	return t.Wait(weight)
}
