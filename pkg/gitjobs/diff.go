package gitjobs

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/asyncgit/pkg/asyncjob"
	"github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"
)

// DiffType selects which two things a DiffJob compares, the diff_type
// variants named on the external-interface surface: the working directory
// against the index, the index against HEAD, one commit against its first
// parent, or one commit against another.
type DiffType int

const (
	// DiffWorkingDir diffs the index against the working directory: the
	// unstaged changes a status pane lists under "changes not staged for
	// commit".
	DiffWorkingDir DiffType = iota
	// DiffStaged diffs HEAD's tree against the index: the staged changes a
	// status pane lists under "changes to be committed".
	DiffStaged
	// DiffCommit diffs a single commit against its first parent (or an
	// empty tree, for a root commit).
	DiffCommit
	// DiffCommits diffs two arbitrary commits against each other.
	DiffCommits
)

// DiffParams names a diff request: which diff_type to run, the commit(s)
// it needs (unused fields are ignored depending on Type), an optional
// single-file path restriction, and the caller's DiffOptions. It is the
// cache key for recent diff results: spawning the same params twice (the
// UI re-requesting a diff it already has, e.g. after an unrelated
// keystroke) is guaranteed to be idempotent and should not recompute.
type DiffParams struct {
	Path      string
	Type      DiffType
	Commit    gitlib.Hash // DiffCommit.
	OldCommit gitlib.Hash // DiffCommits.
	NewCommit gitlib.Hash // DiffCommits.
	Options   gitlib.DiffOptions
}

// DiffResult is a completed diff job's payload.
type DiffResult struct {
	Changes gitlib.Changes
}

// defaultDiffCacheSize bounds how many recent DiffParams->DiffResult pairs
// are retained.
const defaultDiffCacheSize = 64

// DiffJob runs diffs through a single-slot scheduler, with a bounded LRU in
// front of it so an idempotent repeat request returns instantly instead of
// re-running libgit2.
type DiffJob struct {
	repoPath string
	pool     *asyncjob.Pool
	bus      *asyncjob.Bus[Notification]
	job      *asyncjob.SingleJob[DiffParams, DiffResult]
	cache    *lru.Cache[DiffParams, DiffResult]
}

// NewDiffJob creates a DiffJob that opens its own handle on repoPath for
// every run, rather than sharing one across job types, running its work on
// pool and publishing completion notifications on bus.
func NewDiffJob(repoPath string, pool *asyncjob.Pool, bus *asyncjob.Bus[Notification]) *DiffJob {
	cache, _ := lru.New[DiffParams, DiffResult](defaultDiffCacheSize)

	d := &DiffJob{repoPath: repoPath, pool: pool, bus: bus, cache: cache}
	d.job = asyncjob.NewSingleJob(d.run, func(_ DiffResult, err error) {
		bus.Send(Notification{Kind: KindDiff, Err: err})
	})

	return d
}

// Spawn requests a diff, returning immediately. The result (or error)
// arrives on the job's bus. A cached result for the same params is
// delivered synchronously as KindFinishUnchanged without touching the
// worker pool.
func (d *DiffJob) Spawn(ctx context.Context, params DiffParams) {
	if _, ok := d.cache.Get(params); ok {
		d.bus.Send(Notification{Kind: KindFinishUnchanged})

		return
	}

	d.job.Spawn(ctx, params)
}

// Last returns the most recently completed diff result, if any.
func (d *DiffJob) Last() (DiffResult, error, bool) {
	return d.job.Last()
}

// IsPending reports whether a diff is currently running or queued.
func (d *DiffJob) IsPending() bool {
	return d.job.IsPending()
}

// run executes the whole diff as a single pool task, since a git2go
// *Repository may only be touched from the thread that keeps its cgo
// handle alive for the duration of the call.
func (d *DiffJob) run(ctx context.Context, params DiffParams) (DiffResult, error) {
	type outcome struct {
		result DiffResult
		err    error
	}

	out := make(chan outcome, 1)

	errCh := d.pool.Submit(ctx, func(ctx context.Context) error {
		result, err := d.diffTrees(params)
		out <- outcome{result: result, err: err}

		return err
	})

	select {
	case <-ctx.Done():
		return DiffResult{}, ErrCancelled
	case <-errCh:
		o := <-out
		if o.err != nil {
			return DiffResult{}, o.err
		}

		d.cache.Add(params, o.result)

		return o.result, nil
	}
}

// diffTrees opens its own repository handle and dispatches to the git
// operation matching params.Type.
func (d *DiffJob) diffTrees(params DiffParams) (DiffResult, error) {
	repo, err := gitlib.OpenRepository(d.repoPath)
	if err != nil {
		return DiffResult{}, fmt.Errorf("diff job: %w", err)
	}
	defer repo.Free()

	var pathspec []string
	if params.Path != "" {
		pathspec = []string{params.Path}
	}

	var changes gitlib.Changes

	switch params.Type {
	case DiffWorkingDir:
		changes, err = gitlib.WorkdirDiff(repo, params.Options, pathspec...)
	case DiffStaged:
		changes, err = gitlib.StagedDiff(repo, params.Options, pathspec...)
	case DiffCommit:
		changes, err = gitlib.CommitDiff(repo, params.Commit, params.Options, pathspec...)
	case DiffCommits:
		changes, err = d.diffCommits(repo, params.OldCommit, params.NewCommit, params.Options, pathspec)
	default:
		return DiffResult{}, fmt.Errorf("diff job: unknown diff type %d", params.Type)
	}

	if err != nil {
		return DiffResult{}, fmt.Errorf("diff job: %w", err)
	}

	return DiffResult{Changes: changes}, nil
}

// diffCommits diffs two commits' trees against each other directly, rather
// than against either one's parent, the DiffCommits variant spec.md names
// separately from the DiffCommit (single commit vs. its own parent) case.
func (d *DiffJob) diffCommits(repo *gitlib.Repository, oldHash, newHash gitlib.Hash, opts gitlib.DiffOptions, pathspec []string) (gitlib.Changes, error) {
	oldTree, err := lookupCommitTree(repo, oldHash)
	if err != nil {
		return nil, err
	}

	if oldTree != nil {
		defer oldTree.Free()
	}

	newTree, err := lookupCommitTree(repo, newHash)
	if err != nil {
		return nil, err
	}

	if newTree != nil {
		defer newTree.Free()
	}

	return gitlib.TreeDiffWithOptions(repo, oldTree, newTree, opts, pathspec...)
}

// lookupCommitTree resolves a commit hash to its tree, returning nil,nil
// for the zero hash (an absent side of a DiffCommits request).
func lookupCommitTree(repo *gitlib.Repository, hash gitlib.Hash) (*gitlib.Tree, error) {
	if hash.IsZero() {
		return nil, nil //nolint:nilnil
	}

	commit, err := repo.LookupCommit(hash)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	return commit.Tree()
}

// RenderUnifiedDiff diffs two in-memory buffers character by character with
// sergi/go-diff and renders the result with DiffPrettyText: the text of both
// sides inline, insertions and deletions marked with ANSI color escapes. No
// job in this package calls it.
func RenderUnifiedDiff(oldText, newText string) string {
	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(oldText, newText, false)

	return dmp.DiffPrettyText(diffs)
}
