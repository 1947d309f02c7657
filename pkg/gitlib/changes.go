package gitlib

import (
	"fmt"
	"io"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeAction represents the type of change in a diff.
type ChangeAction int

const (
	// Insert indicates a new file was added.
	Insert ChangeAction = iota
	// Delete indicates a file was removed.
	Delete
	// Modify indicates a file was modified.
	Modify
)

// Change represents a single file change between two trees.
type Change struct {
	Action ChangeAction
	From   ChangeEntry
	To     ChangeEntry
}

// ChangeEntry represents one side of a change (old or new file).
type ChangeEntry struct {
	Name string
	Hash Hash
	Size int64
	Mode uint16
}

// Changes is a collection of Change objects.
type Changes []*Change

// DiffOptions mirrors the subset of git2go's own DiffOptions a caller can
// usefully influence for a tree-to-tree diff: how much unchanged context
// surrounds a hunk, how close two hunks must be before they merge, and
// whether whitespace-only changes are ignored. The zero value matches
// libgit2's own defaults (3 context lines, 0 interhunk lines, whitespace
// significant).
type DiffOptions struct {
	ContextLines     int
	InterhunkLines   int
	IgnoreWhitespace bool
}

// TreeDiff computes the changes between two trees using libgit2's default
// diff options. Skips diff when both tree OIDs are equal (e.g.
// metadata-only commits).
func TreeDiff(repo *Repository, oldTree, newTree *Tree) (Changes, error) {
	if oldTree != nil && newTree != nil && oldTree.Hash() == newTree.Hash() {
		return make(Changes, 0), nil
	}

	diff, err := repo.DiffTreeToTree(oldTree, newTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	defer diff.Free()

	return changesFromDiff(diff)
}

// TreeDiffWithOptions is TreeDiff with caller-supplied DiffOptions, the path
// gitjobs.DiffJob uses so a UI's per-request diff_options (context lines,
// interhunk lines, ignore-whitespace) actually reach libgit2 instead of
// being accepted and dropped. An optional pathspec restricts the diff to a
// single file, for diff_type Commit/Commits single-file requests.
func TreeDiffWithOptions(repo *Repository, oldTree, newTree *Tree, opts DiffOptions, pathspec ...string) (Changes, error) {
	if len(pathspec) == 0 && oldTree != nil && newTree != nil && oldTree.Hash() == newTree.Hash() {
		return make(Changes, 0), nil
	}

	diff, err := repo.DiffTreeToTreeWithOptions(oldTree, newTree, opts, pathspec...)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	defer diff.Free()

	return changesFromDiff(diff)
}

// WorkdirDiff diffs the index against the working directory (diff_type
// WorkingDir): the unstaged changes a status pane would list. Grounded on
// get_diff's "is_stage == false" branch in
// original_source/asyncgit/src/sync/diff.rs, which diffs index-to-workdir
// with untracked files included and recursed into.
func WorkdirDiff(repo *Repository, opts DiffOptions, pathspec ...string) (Changes, error) {
	diff, err := repo.DiffIndexToWorkdirWithOptions(opts, pathspec...)
	if err != nil {
		return nil, fmt.Errorf("diff workdir: %w", err)
	}
	defer diff.Free()

	return changesFromDiff(diff)
}

// StagedDiff diffs HEAD's tree against the index (diff_type Staged): the
// staged changes a status pane would list under "changes to be committed".
// A repository with no commits yet diffs against an empty tree, the
// get_diff "is_stage == true" branch's equivalent of a first commit.
func StagedDiff(repo *Repository, opts DiffOptions, pathspec ...string) (Changes, error) {
	var headTree *Tree

	headHash, err := repo.Head()
	if err == nil {
		commit, commitErr := repo.LookupCommit(headHash)
		if commitErr != nil {
			return nil, fmt.Errorf("lookup HEAD commit: %w", commitErr)
		}
		defer commit.Free()

		headTree, err = commit.Tree()
		if err != nil {
			return nil, fmt.Errorf("get HEAD tree: %w", err)
		}
		defer headTree.Free()
	}

	diff, err := repo.DiffTreeToIndexWithOptions(headTree, opts, pathspec...)
	if err != nil {
		return nil, fmt.Errorf("diff staged: %w", err)
	}
	defer diff.Free()

	return changesFromDiff(diff)
}

// CommitDiff diffs a commit against its first parent (diff_type Commit): the
// changes that commit introduced. A root commit (no parents) diffs against
// an empty tree, mirroring the parent-lookup fallback duplicated across
// logwalk.DiffContainsPath, commitfilter.matchFilenames and
// gitjobs.commitFiles before this helper existed to hold it once.
func CommitDiff(repo *Repository, hash Hash, opts DiffOptions, pathspec ...string) (Changes, error) {
	commit, err := repo.LookupCommit(hash)
	if err != nil {
		return nil, fmt.Errorf("lookup commit: %w", err)
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get commit tree: %w", err)
	}
	defer tree.Free()

	var parentTree *Tree

	parent, parentErr := commit.Parent(0)
	if parentErr == nil {
		defer parent.Free()

		parentTree, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("get parent tree: %w", err)
		}
		defer parentTree.Free()
	}

	return TreeDiffWithOptions(repo, parentTree, tree, opts, pathspec...)
}

// DiffSummary is the aggregate shape of DiffStats: total files touched and
// lines added/removed across a whole tree-to-tree diff, detached from the
// libgit2 handle so it outlives the Diff it was read from.
type DiffSummary struct {
	FilesChanged int
	Insertions   int
	Deletions    int
}

// TreeDiffWithStats is TreeDiffWithOptions plus the diff's aggregate stats,
// enough for a "N files changed, +X, -Y" summary alongside the per-file
// Changes, without making callers free a *Diff themselves.
func TreeDiffWithStats(repo *Repository, oldTree, newTree *Tree, opts DiffOptions) (Changes, DiffSummary, error) {
	if oldTree != nil && newTree != nil && oldTree.Hash() == newTree.Hash() {
		return make(Changes, 0), DiffSummary{}, nil
	}

	diff, err := repo.DiffTreeToTreeWithOptions(oldTree, newTree, opts)
	if err != nil {
		return nil, DiffSummary{}, fmt.Errorf("diff trees: %w", err)
	}
	defer diff.Free()

	changes, err := changesFromDiff(diff)
	if err != nil {
		return nil, DiffSummary{}, err
	}

	stats, err := diff.Stats()
	if err != nil {
		return nil, DiffSummary{}, fmt.Errorf("get diff stats: %w", err)
	}
	defer stats.Free()

	summary := DiffSummary{
		FilesChanged: stats.FilesChanged(),
		Insertions:   stats.Insertions(),
		Deletions:    stats.Deletions(),
	}

	return changes, summary, nil
}

// changesFromDiff converts every delta in diff into a Change, the shared
// tail end of TreeDiff and TreeDiffWithOptions.
func changesFromDiff(diff *Diff) (Changes, error) {
	numDeltas, numErr := diff.NumDeltas()
	if numErr != nil {
		return nil, fmt.Errorf("get num deltas: %w", numErr)
	}

	changes := make(Changes, 0, numDeltas)

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			continue
		}

		change := &Change{}

		switch delta.Status {
		case git2go.DeltaAdded:
			change.Action = Insert
			change.To = ChangeEntry{
				Name: delta.NewFile.Path,
				Hash: delta.NewFile.Hash,
				Size: delta.NewFile.Size,
			}
		case git2go.DeltaDeleted:
			change.Action = Delete
			change.From = ChangeEntry{
				Name: delta.OldFile.Path,
				Hash: delta.OldFile.Hash,
				Size: delta.OldFile.Size,
			}
		case git2go.DeltaModified, git2go.DeltaRenamed, git2go.DeltaCopied:
			change.Action = Modify
			change.From = ChangeEntry{
				Name: delta.OldFile.Path,
				Hash: delta.OldFile.Hash,
				Size: delta.OldFile.Size,
			}
			change.To = ChangeEntry{
				Name: delta.NewFile.Path,
				Hash: delta.NewFile.Hash,
				Size: delta.NewFile.Size,
			}
		case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
			git2go.DeltaTypeChange, git2go.DeltaUnreadable, git2go.DeltaConflicted:
			// Skip these delta types as they don't represent meaningful changes.
			continue
		}

		changes = append(changes, change)
	}

	return changes, nil
}

// InitialTreeChanges creates changes for an initial commit (all files are insertions).
func InitialTreeChanges(repo *Repository, tree *Tree) (Changes, error) {
	if tree == nil {
		return nil, nil
	}

	changes := make(Changes, 0)

	err := walkTree(repo, tree, "", func(path string, entry *TreeEntry) error {
		if !entry.IsBlob() {
			return nil
		}

		changes = append(changes, &Change{
			Action: Insert,
			To: ChangeEntry{
				Name: path,
				Hash: entry.Hash(),
			},
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return changes, nil
}

// walkTree recursively walks a tree and calls the callback for each entry.
func walkTree(repo *Repository, tree *Tree, prefix string, cb func(path string, entry *TreeEntry) error) error {
	count := tree.EntryCount()

	for i := range count {
		entry := tree.EntryByIndex(i)
		if entry == nil {
			continue
		}

		walkErr := processTreeEntry(repo, entry, prefix, cb)
		if walkErr != nil {
			return walkErr
		}
	}

	return nil
}

// processTreeEntry handles a single tree entry, either calling cb for blobs or recursing for subtrees.
func processTreeEntry(repo *Repository, entry *TreeEntry, prefix string, cb func(path string, entry *TreeEntry) error) error {
	path := entry.Name()
	if prefix != "" {
		path = prefix + "/" + path
	}

	if entry.IsBlob() {
		return cb(path, entry)
	}

	if entry.Type() != git2go.ObjectTree {
		return nil
	}

	subtree, lookupErr := repo.LookupTree(entry.Hash())
	if lookupErr != nil {
		return nil // Skip entries we can't look up.
	}
	defer subtree.Free()

	return walkTree(repo, subtree, path, cb)
}

// File represents a file in a tree with its content accessible.
type File struct {
	Name string
	Hash Hash
	Mode uint16
	repo *Repository
}

// Contents returns the file contents.
func (f *File) Contents() ([]byte, error) {
	blob, err := f.repo.LookupBlob(f.Hash)
	if err != nil {
		return nil, err
	}
	defer blob.Free()

	return blob.Contents(), nil
}

// Reader returns a reader for the file contents.
func (f *File) Reader() (io.ReadCloser, error) {
	contents, err := f.Contents()
	if err != nil {
		return nil, err
	}

	return io.NopCloser(&blobReader{data: contents}), nil
}

// Blob returns the blob object for this file.
func (f *File) Blob() (*Blob, error) {
	return f.repo.LookupBlob(f.Hash)
}

// TreeFiles returns all files in a tree.
func TreeFiles(repo *Repository, tree *Tree) ([]*File, error) {
	var files []*File

	err := walkTree(repo, tree, "", func(path string, entry *TreeEntry) error {
		files = append(files, &File{
			Name: path,
			Hash: entry.Hash(),
			repo: repo,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
