package gitlib

import (
	"fmt"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the HEAD reference target.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit: %w", err)
	}

	return &Commit{commit: commit, repo: r}, nil
}

// LookupBlob returns the blob with the given hash.
func (r *Repository) LookupBlob(hash Hash) (*Blob, error) {
	blob, err := r.repo.LookupBlob(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup blob: %w", err)
	}

	return &Blob{blob: blob}, nil
}

// LookupTree returns the tree with the given hash.
func (r *Repository) LookupTree(hash Hash) (*Tree, error) {
	tree, err := r.repo.LookupTree(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup tree: %w", err)
	}

	return &Tree{tree: tree, repo: r}, nil
}

// LogOptions configures the commit log iteration.
type LogOptions struct {
	Since       *time.Time // Only include commits after this time.
	FirstParent bool       // Follow only first parent (git log --first-parent).
}

// Log returns a commit iterator starting from HEAD.
func (r *Repository) Log(opts *LogOptions) (*CommitIter, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	// Start from HEAD.
	headRef, err := r.repo.Head()
	if err != nil {
		walk.Free()

		return nil, fmt.Errorf("get HEAD: %w", err)
	}
	defer headRef.Free()

	err = walk.Push(headRef.Target())
	if err != nil {
		walk.Free()

		return nil, fmt.Errorf("push HEAD to revwalk: %w", err)
	}

	// Topological order ensures a commit is never returned before any of its
	// descendants, even when branches have different timestamps.
	walk.Sorting(git2go.SortTime | git2go.SortTopological)

	if opts != nil && opts.FirstParent {
		walk.SimplifyFirstParent()
	}

	return &CommitIter{walk: walk, repo: r, since: opts.Since}, nil
}

// DiffTreeToTree computes the diff between two trees.
func (r *Repository) DiffTreeToTree(oldTree, newTree *Tree) (*Diff, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	var oldT, newT *git2go.Tree
	if oldTree != nil {
		oldT = oldTree.tree
	}

	if newTree != nil {
		newT = newTree.tree
	}

	diff, err := r.repo.DiffTreeToTree(oldT, newT, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	return &Diff{diff: diff}, nil
}

// DiffTreeToTreeWithOptions is DiffTreeToTree with caller-supplied
// DiffOptions layered onto libgit2's defaults, optionally restricted to the
// given pathspec (a single file, for the commit-vs-parent and
// commit-vs-commit diff_type variants that only care about one path).
func (r *Repository) DiffTreeToTreeWithOptions(oldTree, newTree *Tree, opts DiffOptions, pathspec ...string) (*Diff, error) {
	gitOpts, err := buildDiffOptions(opts, pathspec)
	if err != nil {
		return nil, err
	}

	var oldT, newT *git2go.Tree
	if oldTree != nil {
		oldT = oldTree.tree
	}

	if newTree != nil {
		newT = newTree.tree
	}

	diff, err := r.repo.DiffTreeToTree(oldT, newT, &gitOpts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	return &Diff{diff: diff}, nil
}

// DiffIndexToWorkdirWithOptions diffs the repository's index against its
// working directory: the unstaged changes a status pane lists under
// "changes not staged for commit" (diff_type WorkingDir). Untracked files
// are included and recursed into, matching get_diff's own
// include_untracked/recurse_untracked_dirs behaviour for the unstaged case.
func (r *Repository) DiffIndexToWorkdirWithOptions(opts DiffOptions, pathspec ...string) (*Diff, error) {
	gitOpts, err := buildDiffOptions(opts, pathspec)
	if err != nil {
		return nil, err
	}

	gitOpts.Flags |= git2go.DiffIncludeUntracked | git2go.DiffRecurseUntracked

	diff, err := r.repo.DiffIndexToWorkdir(nil, &gitOpts)
	if err != nil {
		return nil, fmt.Errorf("diff index to workdir: %w", err)
	}

	return &Diff{diff: diff}, nil
}

// DiffTreeToIndexWithOptions diffs tree (HEAD's tree, normally) against the
// repository's index: the staged changes a status pane lists under
// "changes to be committed" (diff_type Staged). A nil tree diffs against an
// empty tree, the shape a repository with no commits yet takes.
func (r *Repository) DiffTreeToIndexWithOptions(tree *Tree, opts DiffOptions, pathspec ...string) (*Diff, error) {
	gitOpts, err := buildDiffOptions(opts, pathspec)
	if err != nil {
		return nil, err
	}

	var t *git2go.Tree
	if tree != nil {
		t = tree.tree
	}

	diff, err := r.repo.DiffTreeToIndex(t, nil, &gitOpts)
	if err != nil {
		return nil, fmt.Errorf("diff tree to index: %w", err)
	}

	return &Diff{diff: diff}, nil
}

// buildDiffOptions layers a caller's DiffOptions and optional pathspec onto
// libgit2's defaults, the shared tail of every DiffXToYWithOptions method.
func buildDiffOptions(opts DiffOptions, pathspec []string) (git2go.DiffOptions, error) {
	gitOpts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return git2go.DiffOptions{}, fmt.Errorf("get diff options: %w", err)
	}

	if opts.ContextLines > 0 {
		gitOpts.ContextLines = uint32(opts.ContextLines)
	}

	if opts.InterhunkLines > 0 {
		gitOpts.InterhunkLines = uint32(opts.InterhunkLines)
	}

	if opts.IgnoreWhitespace {
		gitOpts.Flags |= git2go.DiffIgnoreWhitespace
	}

	if len(pathspec) > 0 {
		gitOpts.Pathspec = pathspec
	}

	return gitOpts, nil
}

// Native returns the underlying libgit2 repository for advanced operations.
func (r *Repository) Native() *git2go.Repository {
	return r.repo
}
