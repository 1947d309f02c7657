package gitjobs

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/asyncgit/pkg/asyncjob"
	"github.com/Sumatoshi-tech/asyncgit/pkg/cred"
	"github.com/Sumatoshi-tech/asyncgit/pkg/gitlib"
	"github.com/Sumatoshi-tech/asyncgit/pkg/progress"
)

// CredentialPrompt asks the caller (the UI, in production; a canned
// responder in tests and the CLI) for basic-auth credentials. It is called
// at most once per network attempt: a rejected credential never triggers a
// second prompt, matching libgit2's one-shot credentials callback contract
// enforced in gitlib.oneShotCredentials.
type CredentialPrompt func(ctx context.Context) (cred.BasicAuth, error)

// RemoteResult is a completed fetch/push/push-tags job's payload.
type RemoteResult struct{}

// remoteProgress is the asyncjob.RunParams instantiation every remote job
// uses: each transfer-progress tick is one "batch" for C4's incremental
// emission, carried as a Notification on the shared bus.
type remoteProgress = asyncjob.RunParams[Notification, progress.RemoteProgress]

// resolveCredentials asks, in order, the caller's prompt, the remote's
// configured git credential helper, and the remote URL's own userinfo —
// the same need_username_password/extract_username_password fallback chain
// original_source/asyncgit/src/sync/cred.rs walks before ever touching the
// SSH agent. The first step to produce a complete answer wins; if none do,
// a nil CredentialCallback falls back to gitlib's own default (SSH agent,
// then libgit2's default credential type).
func resolveCredentials(ctx context.Context, repo *gitlib.Repository, remoteName string, prompt CredentialPrompt) (gitlib.CredentialCallback, error) {
	if prompt != nil {
		auth, err := prompt(ctx)
		if err != nil {
			return nil, fmt.Errorf("credential prompt: %w", err)
		}

		if auth.IsComplete() {
			return gitlib.BasicAuthCredentials(auth.Username, auth.Password), nil
		}
	}

	remoteURL, err := repo.RemoteURL(remoteName)
	if err != nil || !cred.NeedsUserPassword(remoteURL) {
		return nil, nil //nolint:nilnil
	}

	if auth, ok := cred.HelperCredentials(ctx, repo.ConfigString, remoteURL); ok {
		return gitlib.BasicAuthCredentials(auth.Username, auth.Password), nil
	}

	if auth := cred.ExtractFromURL(remoteURL); auth.IsComplete() {
		return gitlib.BasicAuthCredentials(auth.Username, auth.Password), nil
	}

	return nil, nil //nolint:nilnil
}

// runNetworkOp supervises a git2go network call and its progress-forwarder
// goroutine with an errgroup, so both are joined exactly once: op runs on
// the shared worker pool, opening its own repository handle on the pool
// worker's locked OS thread rather than touching a handle shared with any
// other job (spec's per-job-handle resource policy), while a second
// goroutine drains its progress notifications into rp without blocking the
// network call. rp's notify func tags every intermediate batch with a Kind
// distinct from the job's completion notification, so a waiter blocking for
// completion never mistakes an in-flight tick for the finished result.
func runNetworkOp(
	ctx context.Context,
	pool *asyncjob.Pool,
	repoPath string,
	rp *remoteProgress,
	credFn gitlib.CredentialCallback,
	op func(repo *gitlib.Repository, credFn gitlib.CredentialCallback, onProgress gitlib.ProgressCallback) error,
) error {
	rp.Reset()

	group, gctx := errgroup.WithContext(ctx)

	progressCh := make(chan progress.Notification, 16)

	group.Go(func() error {
		defer close(progressCh)

		errCh := pool.Submit(gctx, func(ctx context.Context) error {
			repo, err := gitlib.OpenRepository(repoPath)
			if err != nil {
				return fmt.Errorf("open repository: %w", err)
			}
			defer repo.Free()

			return op(repo, credFn, func(n progress.Notification) {
				select {
				case progressCh <- n:
				case <-ctx.Done():
				}
			})
		})

		return <-errCh
	})

	group.Go(func() error {
		for {
			select {
			case n, ok := <-progressCh:
				if !ok {
					return nil
				}

				rp.Emit(progress.Aggregate(n))
			case <-gctx.Done():
				return nil
			}
		}
	})

	return group.Wait()
}

// FetchJob fetches from a named remote through a single-slot scheduler.
type FetchJob struct {
	repoPath string
	pool     *asyncjob.Pool
	bus      *asyncjob.Bus[Notification]
	prompt   CredentialPrompt
	job      *asyncjob.SingleJob[string, RemoteResult]
	progress *remoteProgress
}

// NewFetchJob creates a FetchJob that opens its own handle on repoPath for
// every run, rather than sharing one across job types.
func NewFetchJob(repoPath string, pool *asyncjob.Pool, bus *asyncjob.Bus[Notification], prompt CredentialPrompt) *FetchJob {
	j := &FetchJob{
		repoPath: repoPath,
		pool:     pool,
		bus:      bus,
		prompt:   prompt,
		progress: asyncjob.NewRunParams(bus, func(p progress.RemoteProgress) Notification {
			return Notification{Kind: KindFetchProgress, Progress: p}
		}),
	}
	j.job = asyncjob.NewSingleJob(j.run, func(_ RemoteResult, err error) {
		bus.Send(Notification{Kind: KindFetch, Err: err})
	})

	return j
}

// Spawn requests a fetch from the named remote.
func (j *FetchJob) Spawn(ctx context.Context, remoteName string) {
	j.job.Spawn(ctx, remoteName)
}

// Last returns the most recently completed fetch result, if any.
func (j *FetchJob) Last() (RemoteResult, error, bool) {
	return j.job.Last()
}

// IsPending reports whether a fetch is currently running or queued.
func (j *FetchJob) IsPending() bool {
	return j.job.IsPending()
}

// Progress returns the most recently observed transfer progress for the
// current (or most recently finished) fetch, and whether any progress has
// been observed yet.
func (j *FetchJob) Progress() (progress.RemoteProgress, bool) {
	return j.progress.Progress()
}

func (j *FetchJob) run(ctx context.Context, remoteName string) (RemoteResult, error) {
	repo, err := gitlib.OpenRepository(j.repoPath)
	if err != nil {
		return RemoteResult{}, fmt.Errorf("open repository: %w", err)
	}
	defer repo.Free()

	credFn, err := resolveCredentials(ctx, repo, remoteName, j.prompt)
	if err != nil {
		return RemoteResult{}, err
	}

	err = runNetworkOp(ctx, j.pool, j.repoPath, j.progress, credFn, func(repo *gitlib.Repository, credFn gitlib.CredentialCallback, onProgress gitlib.ProgressCallback) error {
		return repo.Fetch(remoteName, credFn, onProgress)
	})

	return RemoteResult{}, err
}

// PushJob pushes a branch to a named remote through a single-slot
// scheduler.
type PushJob struct {
	repoPath string
	pool     *asyncjob.Pool
	bus      *asyncjob.Bus[Notification]
	prompt   CredentialPrompt
	job      *asyncjob.SingleJob[PushParams, RemoteResult]
	progress *remoteProgress
}

// PushParams names a push request's target and its force/delete modifiers.
// The two compose into push's four modes: plain, forced, delete, and
// forced-delete (force has no effect once the ref is being deleted).
type PushParams struct {
	RemoteName string
	Branch     string
	Force      bool
	Delete     bool
}

// NewPushJob creates a PushJob that opens its own handle on repoPath for
// every run, rather than sharing one across job types.
func NewPushJob(repoPath string, pool *asyncjob.Pool, bus *asyncjob.Bus[Notification], prompt CredentialPrompt) *PushJob {
	j := &PushJob{
		repoPath: repoPath,
		pool:     pool,
		bus:      bus,
		prompt:   prompt,
		progress: asyncjob.NewRunParams(bus, func(p progress.RemoteProgress) Notification {
			return Notification{Kind: KindPushProgress, Progress: p}
		}),
	}
	j.job = asyncjob.NewSingleJob(j.run, func(_ RemoteResult, err error) {
		bus.Send(Notification{Kind: KindPush, Err: err})
	})

	return j
}

// Spawn requests a push of params.Branch to params.RemoteName.
func (j *PushJob) Spawn(ctx context.Context, params PushParams) {
	j.job.Spawn(ctx, params)
}

// Last returns the most recently completed push result, if any.
func (j *PushJob) Last() (RemoteResult, error, bool) {
	return j.job.Last()
}

// IsPending reports whether a push is currently running or queued.
func (j *PushJob) IsPending() bool {
	return j.job.IsPending()
}

// Progress returns the most recently observed transfer progress for the
// current (or most recently finished) push, and whether any progress has
// been observed yet.
func (j *PushJob) Progress() (progress.RemoteProgress, bool) {
	return j.progress.Progress()
}

func (j *PushJob) run(ctx context.Context, params PushParams) (RemoteResult, error) {
	repo, err := gitlib.OpenRepository(j.repoPath)
	if err != nil {
		return RemoteResult{}, fmt.Errorf("open repository: %w", err)
	}
	defer repo.Free()

	credFn, err := resolveCredentials(ctx, repo, params.RemoteName, j.prompt)
	if err != nil {
		return RemoteResult{}, err
	}

	err = runNetworkOp(ctx, j.pool, j.repoPath, j.progress, credFn, func(repo *gitlib.Repository, credFn gitlib.CredentialCallback, onProgress gitlib.ProgressCallback) error {
		return repo.Push(params.RemoteName, params.Branch, params.Force, params.Delete, credFn, onProgress)
	})

	if err != nil {
		return RemoteResult{}, fmt.Errorf("push job: %w", err)
	}

	return RemoteResult{}, nil
}

// PushTagsJob pushes all local tags to a named remote through a
// single-slot scheduler.
type PushTagsJob struct {
	repoPath string
	pool     *asyncjob.Pool
	bus      *asyncjob.Bus[Notification]
	prompt   CredentialPrompt
	job      *asyncjob.SingleJob[string, RemoteResult]
	progress *remoteProgress
}

// NewPushTagsJob creates a PushTagsJob that opens its own handle on
// repoPath for every run, rather than sharing one across job types.
func NewPushTagsJob(repoPath string, pool *asyncjob.Pool, bus *asyncjob.Bus[Notification], prompt CredentialPrompt) *PushTagsJob {
	j := &PushTagsJob{
		repoPath: repoPath,
		pool:     pool,
		bus:      bus,
		prompt:   prompt,
		progress: asyncjob.NewRunParams(bus, func(p progress.RemoteProgress) Notification {
			return Notification{Kind: KindPushTagsProgress, Progress: p}
		}),
	}
	j.job = asyncjob.NewSingleJob(j.run, func(_ RemoteResult, err error) {
		bus.Send(Notification{Kind: KindPushTags, Err: err})
	})

	return j
}

// Spawn requests a push of all local tags to the named remote.
func (j *PushTagsJob) Spawn(ctx context.Context, remoteName string) {
	j.job.Spawn(ctx, remoteName)
}

// Last returns the most recently completed push-tags result, if any.
func (j *PushTagsJob) Last() (RemoteResult, error, bool) {
	return j.job.Last()
}

// IsPending reports whether a push-tags request is currently running or
// queued.
func (j *PushTagsJob) IsPending() bool {
	return j.job.IsPending()
}

// Progress returns the most recently observed transfer progress for the
// current (or most recently finished) push-tags request, and whether any
// progress has been observed yet.
func (j *PushTagsJob) Progress() (progress.RemoteProgress, bool) {
	return j.progress.Progress()
}

func (j *PushTagsJob) run(ctx context.Context, remoteName string) (RemoteResult, error) {
	repo, err := gitlib.OpenRepository(j.repoPath)
	if err != nil {
		return RemoteResult{}, fmt.Errorf("open repository: %w", err)
	}
	defer repo.Free()

	credFn, err := resolveCredentials(ctx, repo, remoteName, j.prompt)
	if err != nil {
		return RemoteResult{}, err
	}

	err = runNetworkOp(ctx, j.pool, j.repoPath, j.progress, credFn, func(repo *gitlib.Repository, credFn gitlib.CredentialCallback, onProgress gitlib.ProgressCallback) error {
		return repo.PushTags(remoteName, credFn, onProgress)
	})

	return RemoteResult{}, err
}
