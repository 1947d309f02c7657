package gitjobs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/asyncgit/pkg/asyncjob"
	"github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"
)

// BlameParams names the file and starting commit a blame should run
// against; the original blames against HEAD by default but accepts any
// starting commit.
type BlameParams struct {
	Path      string
	StartHash gitlib.Hash // zero value means HEAD.
}

// BlameHunkInfo is one line's attribution: which commit last touched it,
// that commit's author name and email, and the hunk's line range in the
// blamed file.
type BlameHunkInfo struct {
	CommitHash gitlib.Hash
	Author     string
	Email      string
	StartLine  int // 0-based.
	EndLine    int // exclusive.
}

// BlameLine pairs a source line with the hunk that produced it. Hunk is nil
// for lines git2go could not attribute (e.g. uncommitted local changes).
type BlameLine struct {
	Hunk *BlameHunkInfo
	Text string
}

// FileBlameResult is a completed blame job's payload.
type FileBlameResult struct {
	Path  string
	Lines []BlameLine
}

// BlameJob computes a per-line file blame through a single-slot scheduler.
type BlameJob struct {
	repoPath string
	pool     *asyncjob.Pool
	bus      *asyncjob.Bus[Notification]
	job      *asyncjob.SingleJob[BlameParams, FileBlameResult]
}

// NewBlameJob creates a BlameJob that opens its own handle on repoPath for
// every run, rather than sharing one across job types.
func NewBlameJob(repoPath string, pool *asyncjob.Pool, bus *asyncjob.Bus[Notification]) *BlameJob {
	j := &BlameJob{repoPath: repoPath, pool: pool, bus: bus}
	j.job = asyncjob.NewSingleJob(j.run, func(_ FileBlameResult, err error) {
		bus.Send(Notification{Kind: KindBlame, Err: err})
	})

	return j
}

// Spawn requests a blame of the given file starting from the given commit
// (or HEAD, if StartHash is the zero hash).
func (j *BlameJob) Spawn(ctx context.Context, params BlameParams) {
	j.job.Spawn(ctx, params)
}

// Last returns the most recently completed blame result, if any.
func (j *BlameJob) Last() (FileBlameResult, error, bool) {
	return j.job.Last()
}

// IsPending reports whether a blame is currently running or queued.
func (j *BlameJob) IsPending() bool {
	return j.job.IsPending()
}

func (j *BlameJob) run(ctx context.Context, params BlameParams) (FileBlameResult, error) {
	type outcome struct {
		result FileBlameResult
		err    error
	}

	out := make(chan outcome, 1)

	errCh := j.pool.Submit(ctx, func(ctx context.Context) error {
		result, err := j.blame(params)
		out <- outcome{result: result, err: err}

		return err
	})

	select {
	case <-ctx.Done():
		return FileBlameResult{}, ErrCancelled
	case <-errCh:
		o := <-out

		return o.result, o.err
	}
}

func (j *BlameJob) blame(params BlameParams) (FileBlameResult, error) {
	repo, err := gitlib.OpenRepository(j.repoPath)
	if err != nil {
		return FileBlameResult{}, fmt.Errorf("blame job: %w", err)
	}
	defer repo.Free()

	native := repo.Native()

	opts, err := git2go.DefaultBlameOptions()
	if err != nil {
		return FileBlameResult{}, fmt.Errorf("blame job: %w", err)
	}

	if !params.StartHash.IsZero() {
		opts.NewestCommit = *params.StartHash.ToOid()
	}

	blame, err := native.BlameFile(params.Path, &opts)
	if err != nil {
		return FileBlameResult{}, fmt.Errorf("blame job: %w", err)
	}
	defer blame.Free()

	content, err := j.blobAt(repo, params)
	if err != nil {
		return FileBlameResult{}, err
	}

	result := FileBlameResult{Path: params.Path}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	line := 0

	for scanner.Scan() {
		line++ // blame hunk line numbers are 1-based.

		var hunkInfo *BlameHunkInfo

		if hunk, hunkErr := blame.HunkByLine(line); hunkErr == nil && hunk != nil {
			hunkInfo = &BlameHunkInfo{
				CommitHash: gitlib.HashFromOid(hunk.FinalCommitId),
				StartLine:  hunk.FinalStartLineNumber - 1,
				EndLine:    hunk.FinalStartLineNumber - 1 + int(hunk.LinesInHunk),
			}

			if hunk.FinalSignature != nil {
				hunkInfo.Author = hunk.FinalSignature.Name
				hunkInfo.Email = hunk.FinalSignature.Email
			}
		}

		result.Lines = append(result.Lines, BlameLine{Hunk: hunkInfo, Text: scanner.Text()})
	}

	return result, nil
}

// blobAt resolves the file's content at the blame's starting commit (or
// HEAD), the way the original resolves "{commit}:{path}" with revparse.
func (j *BlameJob) blobAt(repo *gitlib.Repository, params BlameParams) ([]byte, error) {
	hash := params.StartHash

	if hash.IsZero() {
		head, err := repo.Head()
		if err != nil {
			return nil, fmt.Errorf("blame job: %w", err)
		}

		hash = head
	}

	commit, err := repo.LookupCommit(hash)
	if err != nil {
		return nil, fmt.Errorf("blame job: %w", err)
	}
	defer commit.Free()

	file, err := commit.File(params.Path)
	if err != nil {
		return nil, fmt.Errorf("blame job: %w", err)
	}

	return file.Contents()
}
