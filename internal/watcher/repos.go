package watcher

import (
	"fmt"
	"sort"
	"strings"
)

// RepoRef identifies a repository in canonical owner/name form.
type RepoRef struct {
	Owner string
	Name  string
}

// String returns the canonical owner/name form.
func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepoRef normalizes a repository identifier. Accepted forms are
// "owner/name", "github.com/owner/name", and full URLs such as
// "https://github.com/owner/name" (with or without a .git suffix or trailing
// path). Comparison is case-insensitive, so owner and name are lowercased.
func ParseRepoRef(input string) (RepoRef, error) {
	s := strings.TrimSpace(input)

	for _, prefix := range []string{"https://", "http://", "git@"} {
		s = strings.TrimPrefix(s, prefix)
	}

	s = strings.TrimPrefix(s, "github.com:")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.Trim(s, "/")

	parts := strings.Split(s, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, fmt.Errorf("invalid repository identifier: %q (expected owner/name)", input)
	}

	owner := strings.ToLower(parts[0])
	name := strings.ToLower(strings.TrimSuffix(parts[1], ".git"))

	if name == "" {
		return RepoRef{}, fmt.Errorf("invalid repository identifier: %q (expected owner/name)", input)
	}

	return RepoRef{Owner: owner, Name: name}, nil
}

// repoSet stores the normalized static watch list. Not safe for concurrent
// use; the watcher guards it with its own mutex.
type repoSet struct {
	refs map[RepoRef]struct{}
}

func newRepoSet() *repoSet {
	return &repoSet{refs: make(map[RepoRef]struct{})}
}

// add inserts a repository, returning true if it was not already present.
func (s *repoSet) add(ref RepoRef) bool {
	if _, ok := s.refs[ref]; ok {
		return false
	}

	s.refs[ref] = struct{}{}

	return true
}

// remove deletes a repository, returning true if it was present.
func (s *repoSet) remove(ref RepoRef) bool {
	if _, ok := s.refs[ref]; !ok {
		return false
	}

	delete(s.refs, ref)

	return true
}

func (s *repoSet) contains(ref RepoRef) bool {
	_, ok := s.refs[ref]
	return ok
}

// list returns the repositories sorted by owner/name for deterministic polling.
func (s *repoSet) list() []RepoRef {
	refs := make([]RepoRef, 0, len(s.refs))
	for ref := range s.refs {
		refs = append(refs, ref)
	}

	sortRepoRefs(refs)

	return refs
}

func sortRepoRefs(refs []RepoRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Owner != refs[j].Owner {
			return refs[i].Owner < refs[j].Owner
		}

		return refs[i].Name < refs[j].Name
	})
}
