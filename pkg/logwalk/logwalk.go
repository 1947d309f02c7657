// Package logwalk implements a resumable, time-ordered commit history walk,
// the Go counterpart of the original_source logwalker.rs module.
package logwalk

import (
	"container/heap"

	"github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"
)

// Filter decides whether a visited commit belongs in a Read call's output.
// Returning an error aborts the walk in progress. A commit that fails the
// filter is still traversed (its parents are still queued) but is not
// appended to the caller's output slice.
type Filter func(repo *gitlib.Repository, hash gitlib.Hash) (bool, error)

// commitHeap is a max-heap ordered by commit time, so history with multiple
// branches still drains in roughly reverse-chronological order regardless
// of which parent chain a commit was reached through.
type commitHeap struct {
	commits []*gitlib.Commit
}

func (h *commitHeap) Len() int { return len(h.commits) }

func (h *commitHeap) Less(i, j int) bool {
	return h.commits[i].Committer().When.After(h.commits[j].Committer().When)
}

func (h *commitHeap) Swap(i, j int) {
	h.commits[i], h.commits[j] = h.commits[j], h.commits[i]
}

func (h *commitHeap) Push(x any) {
	h.commits = append(h.commits, x.(*gitlib.Commit)) //nolint:forcetypeassert
}

func (h *commitHeap) Pop() any {
	old := h.commits
	n := len(old)
	item := old[n-1]
	h.commits = old[:n-1]

	return item
}

// LogWalker performs a resumable, time-ordered traversal of commit history
// starting from a repository's HEAD. Each call to Read continues where the
// previous one stopped, so a caller can pull history in bounded pages
// without holding the whole graph in memory at once.
type LogWalker struct {
	heap    commitHeap
	visited map[gitlib.Hash]bool
	limit   int
	repo    *gitlib.Repository
	filter  Filter
}

// New creates a LogWalker starting at repo's HEAD commit. limit bounds how
// many commits a single Read call returns.
func New(repo *gitlib.Repository, limit int) (*LogWalker, error) {
	headHash, err := repo.Head()
	if err != nil {
		return nil, err
	}

	head, err := repo.LookupCommit(headHash)
	if err != nil {
		return nil, err
	}

	w := &LogWalker{
		visited: make(map[gitlib.Hash]bool, 1000),
		limit:   limit,
		repo:    repo,
	}
	w.heap.commits = make([]*gitlib.Commit, 0, 10)
	heap.Push(&w.heap, head)
	w.visited[headHash] = true

	return w, nil
}

// WithFilter attaches a predicate used to decide which visited commits are
// included in Read's output, and returns the walker for chaining.
func (w *LogWalker) WithFilter(filter Filter) *LogWalker {
	w.filter = filter

	return w
}

// Read appends up to the walker's limit commit hashes to out, in
// approximate reverse-chronological order, and returns how many were
// appended. A return of 0 with a nil error means history is exhausted.
func (w *LogWalker) Read(out *[]gitlib.Hash) (int, error) {
	count := 0

	for w.heap.Len() > 0 {
		c, _ := heap.Pop(&w.heap).(*gitlib.Commit)

		for i := 0; i < c.NumParents(); i++ {
			parentHash := c.ParentHash(i)
			if w.visited[parentHash] {
				continue
			}

			parent, parentErr := c.Parent(i)
			if parentErr != nil {
				continue
			}

			w.visited[parentHash] = true
			heap.Push(&w.heap, parent)
		}

		id := c.Hash()

		include := true

		if w.filter != nil {
			var filterErr error

			include, filterErr = w.filter(w.repo, id)
			if filterErr != nil {
				c.Free()

				return count, filterErr
			}
		}

		if include {
			*out = append(*out, id)
		}

		c.Free()
		count++

		if count == w.limit {
			break
		}
	}

	return count, nil
}

// Close frees any commit handles still queued in the walker's heap. Callers
// that abandon a LogWalker before history is exhausted must call Close to
// avoid leaking libgit2 commit objects.
func (w *LogWalker) Close() {
	for w.heap.Len() > 0 {
		c, _ := heap.Pop(&w.heap).(*gitlib.Commit)
		c.Free()
	}
}

// DiffContainsPath returns a Filter that includes a commit only if its diff
// against its first parent (or, for a root commit, against an empty tree)
// touches path. It is the Go equivalent of diff_contains_file.
func DiffContainsPath(path string) Filter {
	return func(repo *gitlib.Repository, hash gitlib.Hash) (bool, error) {
		commit, err := repo.LookupCommit(hash)
		if err != nil {
			return false, err
		}
		defer commit.Free()

		tree, err := commit.Tree()
		if err != nil {
			return false, err
		}
		defer tree.Free()

		var parentTree *gitlib.Tree

		if commit.NumParents() > 0 {
			parent, parentErr := commit.Parent(0)
			if parentErr != nil {
				return false, parentErr
			}
			defer parent.Free()

			parentTree, err = parent.Tree()
			if err != nil {
				return false, err
			}
			defer parentTree.Free()
		}

		changes, err := gitlib.TreeDiff(repo, parentTree, tree)
		if err != nil {
			return false, err
		}

		for _, change := range changes {
			if change.From.Name == path || change.To.Name == path {
				return true, nil
			}
		}

		return false, nil
	}
}
