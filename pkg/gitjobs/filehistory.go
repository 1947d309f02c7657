package gitjobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sumatoshi-tech/asyncgit/pkg/asyncjob"
	"github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"
	"github.com/Sumatoshi-tech/asyncgit/pkg/logwalk"
)

// FileHistoryDelta classifies how a commit changed the file being walked.
type FileHistoryDelta int

const (
	// FileHistoryNone means the commit did not touch the file.
	FileHistoryNone FileHistoryDelta = iota
	// FileHistoryAdded means the file was created in this commit.
	FileHistoryAdded
	// FileHistoryDeleted means the file was removed in this commit.
	FileHistoryDeleted
	// FileHistoryModified means the file's contents changed.
	FileHistoryModified
)

// FileHistoryEntry describes one commit's effect on the file being walked,
// recorded under whatever path the file had at that point in history.
type FileHistoryEntry struct {
	Commit   gitlib.Hash
	Delta    FileHistoryDelta
	FilePath string
}

// FileHistoryResult is a completed file-history job's payload, or an
// in-flight run's accumulated snapshot so far.
type FileHistoryResult struct {
	Entries []FileHistoryEntry
}

// fileHistoryBatchSize bounds how many commits a single logwalk.Read call
// consumes before FileHistoryJob emits a progress notification.
const fileHistoryBatchSize = 200

type fileHistoryProgress = asyncjob.RunParams[Notification, FileHistoryResult]

// FileHistoryJob walks a file's history, following the file across renames,
// through a single-slot scheduler.
type FileHistoryJob struct {
	repoPath string
	pool     *asyncjob.Pool
	bus      *asyncjob.Bus[Notification]
	job      *asyncjob.SingleJob[string, FileHistoryResult]
	progress *fileHistoryProgress
}

// NewFileHistoryJob creates a FileHistoryJob that opens its own handle on
// repoPath for every run, rather than sharing one across job types.
func NewFileHistoryJob(repoPath string, pool *asyncjob.Pool, bus *asyncjob.Bus[Notification]) *FileHistoryJob {
	j := &FileHistoryJob{
		repoPath: repoPath,
		pool:     pool,
		bus:      bus,
		progress: asyncjob.NewRunParams(bus, func(r FileHistoryResult) Notification {
			return Notification{Kind: KindFileHistoryProgress}
		}),
	}
	j.job = asyncjob.NewSingleJob(j.run, func(_ FileHistoryResult, err error) {
		bus.Send(Notification{Kind: KindFileHistory, Err: err})
	})

	return j
}

// Spawn requests the history of the file at path, starting from HEAD.
func (j *FileHistoryJob) Spawn(ctx context.Context, path string) {
	j.job.Spawn(ctx, path)
}

// Last returns the most recently completed history, if any.
func (j *FileHistoryJob) Last() (FileHistoryResult, error, bool) {
	return j.job.Last()
}

// IsPending reports whether a file-history walk is currently running or
// queued.
func (j *FileHistoryJob) IsPending() bool {
	return j.job.IsPending()
}

// Progress returns the entries accumulated so far by the run currently in
// flight (or most recently finished), and whether any batch has been
// emitted yet.
func (j *FileHistoryJob) Progress() (FileHistoryResult, bool) {
	return j.progress.Progress()
}

func (j *FileHistoryJob) run(ctx context.Context, path string) (FileHistoryResult, error) {
	type outcome struct {
		result FileHistoryResult
		err    error
	}

	out := make(chan outcome, 1)

	errCh := j.pool.Submit(ctx, func(ctx context.Context) error {
		result, err := j.walk(path)
		out <- outcome{result: result, err: err}

		return err
	})

	select {
	case <-ctx.Done():
		return FileHistoryResult{}, ErrCancelled
	case <-errCh:
		o := <-out

		return o.result, o.err
	}
}

// walk follows path across its entire history, retargeting the filter to
// the file's previous name whenever a commit looks like a same-commit
// rename into the current path, so the history continues past the rename
// boundary instead of stopping at it. It opens its own repository handle
// and reads the walker in fileHistoryBatchSize pages, emitting a growing
// snapshot after every page instead of returning a single final result
// only once the whole walk completes.
func (j *FileHistoryJob) walk(path string) (FileHistoryResult, error) {
	repo, err := gitlib.OpenRepository(j.repoPath)
	if err != nil {
		return FileHistoryResult{}, fmt.Errorf("file history job: %w", err)
	}
	defer repo.Free()

	j.progress.Reset()

	var (
		mu          sync.Mutex
		currentPath = path
		entries     []FileHistoryEntry
	)

	filter := func(repo *gitlib.Repository, hash gitlib.Hash) (bool, error) {
		mu.Lock()
		active := currentPath
		mu.Unlock()

		delta, err := deltaForPath(repo, hash, active)
		if err != nil {
			return false, err
		}

		if delta == FileHistoryNone {
			return false, nil
		}

		entries = append(entries, FileHistoryEntry{Commit: hash, Delta: delta, FilePath: active})

		if delta == FileHistoryAdded {
			if oldName, renamed, renameErr := detectRename(repo, hash, active); renameErr == nil && renamed {
				mu.Lock()
				currentPath = oldName
				mu.Unlock()
			}
		}

		return true, nil
	}

	walker, err := logwalk.New(repo, fileHistoryBatchSize)
	if err != nil {
		return FileHistoryResult{}, fmt.Errorf("file history job: %w", err)
	}
	defer walker.Close()

	walker.WithFilter(filter)

	for {
		var hashes []gitlib.Hash

		read, readErr := walker.Read(&hashes)
		if readErr != nil {
			return FileHistoryResult{}, fmt.Errorf("file history job: %w", readErr)
		}

		if len(hashes) > 0 {
			snapshot := make([]FileHistoryEntry, len(entries))
			copy(snapshot, entries)
			j.progress.Emit(FileHistoryResult{Entries: snapshot})
		}

		if read == 0 {
			break
		}
	}

	return FileHistoryResult{Entries: entries}, nil
}

// deltaForPath classifies how commit changed path relative to its first
// parent (or an empty tree, for a root commit).
func deltaForPath(repo *gitlib.Repository, hash gitlib.Hash, path string) (FileHistoryDelta, error) {
	changes, err := gitlib.CommitDiff(repo, hash, gitlib.DiffOptions{})
	if err != nil {
		return FileHistoryNone, err
	}

	for _, change := range changes {
		switch {
		case change.To.Name == path && change.From.Name == "":
			return FileHistoryAdded, nil
		case change.From.Name == path && change.To.Name == "":
			return FileHistoryDeleted, nil
		case change.To.Name == path || change.From.Name == path:
			return FileHistoryModified, nil
		}
	}

	return FileHistoryNone, nil
}

// detectRename probes whether path was added in hash as a same-commit
// rename: it looks for a deletion elsewhere in the same diff whose blob
// hash matches the added file's blob hash, the cheap 100%-similarity
// signal the original relies on instead of a full similarity index.
func detectRename(repo *gitlib.Repository, hash gitlib.Hash, path string) (string, bool, error) {
	changes, err := gitlib.CommitDiff(repo, hash, gitlib.DiffOptions{})
	if err != nil {
		return "", false, err
	}

	var addedHash gitlib.Hash

	found := false

	for _, change := range changes {
		if change.Action == gitlib.Insert && change.To.Name == path {
			addedHash = change.To.Hash
			found = true
		}
	}

	if !found {
		return "", false, nil
	}

	for _, change := range changes {
		if change.Action == gitlib.Delete && change.From.Hash == addedHash {
			return change.From.Name, true, nil
		}
	}

	return "", false, nil
}
