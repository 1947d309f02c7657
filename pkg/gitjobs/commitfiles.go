package gitjobs

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/asyncgit/pkg/asyncjob"
	"github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"
)

// CommitFilesResult is a completed commit-files job's payload: the changes
// introduced by a single commit relative to its first parent (or an empty
// tree, for a root commit).
type CommitFilesResult struct {
	Changes gitlib.Changes
}

// CommitFilesJob lists the files touched by a commit through a single-slot
// scheduler.
type CommitFilesJob struct {
	repoPath string
	pool     *asyncjob.Pool
	bus      *asyncjob.Bus[Notification]
	job      *asyncjob.SingleJob[gitlib.Hash, CommitFilesResult]
}

// NewCommitFilesJob creates a CommitFilesJob that opens its own handle on
// repoPath for every run, rather than sharing one across job types.
func NewCommitFilesJob(repoPath string, pool *asyncjob.Pool, bus *asyncjob.Bus[Notification]) *CommitFilesJob {
	j := &CommitFilesJob{repoPath: repoPath, pool: pool, bus: bus}
	j.job = asyncjob.NewSingleJob(j.run, func(_ CommitFilesResult, err error) {
		bus.Send(Notification{Kind: KindCommitFiles, Err: err})
	})

	return j
}

// Spawn requests the file list for the given commit.
func (j *CommitFilesJob) Spawn(ctx context.Context, commit gitlib.Hash) {
	j.job.Spawn(ctx, commit)
}

// Last returns the most recently completed result, if any.
func (j *CommitFilesJob) Last() (CommitFilesResult, error, bool) {
	return j.job.Last()
}

// IsPending reports whether a commit-files request is currently running or
// queued.
func (j *CommitFilesJob) IsPending() bool {
	return j.job.IsPending()
}

func (j *CommitFilesJob) run(ctx context.Context, hash gitlib.Hash) (CommitFilesResult, error) {
	type outcome struct {
		result CommitFilesResult
		err    error
	}

	out := make(chan outcome, 1)

	errCh := j.pool.Submit(ctx, func(ctx context.Context) error {
		result, err := j.commitFiles(hash)
		out <- outcome{result: result, err: err}

		return err
	})

	select {
	case <-ctx.Done():
		return CommitFilesResult{}, ErrCancelled
	case <-errCh:
		o := <-out

		return o.result, o.err
	}
}

func (j *CommitFilesJob) commitFiles(hash gitlib.Hash) (CommitFilesResult, error) {
	repo, err := gitlib.OpenRepository(j.repoPath)
	if err != nil {
		return CommitFilesResult{}, fmt.Errorf("commit files job: %w", err)
	}
	defer repo.Free()

	changes, err := gitlib.CommitDiff(repo, hash, gitlib.DiffOptions{})
	if err != nil {
		return CommitFilesResult{}, fmt.Errorf("commit files job: %w", err)
	}

	return CommitFilesResult{Changes: changes}, nil
}
