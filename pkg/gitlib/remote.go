package gitlib

import (
	"errors"
	"fmt"
	"sync/atomic"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/asyncgit/pkg/progress"
)

// ErrNoRemotes is returned when a repository has no configured remotes.
var ErrNoRemotes = errors.New("gitlib: no remotes configured")

// ErrBadCredentials is returned to libgit2 on any credentials callback
// invocation after the first, so a rejected credential never causes an
// infinite retry loop against the remote.
var ErrBadCredentials = errors.New("gitlib: bad credentials")

// ErrPushRejected is returned when the remote rejects an update to one of
// the pushed references (e.g. a non-fast-forward push without --force).
var ErrPushRejected = errors.New("gitlib: push rejected")

// DefaultRemoteName returns the name of the first configured remote,
// mirroring the "pick origin, or whatever's there" convention the original
// get_default_remote_in_repo helper follows.
func (r *Repository) DefaultRemoteName() (string, error) {
	names, err := r.repo.Remotes.List()
	if err != nil {
		return "", fmt.Errorf("list remotes: %w", err)
	}

	if len(names) == 0 {
		return "", ErrNoRemotes
	}

	for _, name := range names {
		if name == "origin" {
			return name, nil
		}
	}

	return names[0], nil
}

// ConfigString looks up a single git config key (e.g. "credential.helper")
// through libgit2's own config resolution (repo-local, then global/system,
// the same precedence `git config --get` follows), returning ok=false if
// the key is unset anywhere in that chain.
func (r *Repository) ConfigString(key string) (string, bool, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return "", false, fmt.Errorf("open config: %w", err)
	}
	defer cfg.Free()

	value, err := cfg.LookupString(key)
	if err != nil {
		return "", false, nil //nolint:nilerr
	}

	return value, true, nil
}

// RemoteURL returns the push URL of the named remote, falling back to its
// fetch URL when no separate push URL is configured.
func (r *Repository) RemoteURL(name string) (string, error) {
	remote, err := r.repo.Remotes.Lookup(name)
	if err != nil {
		return "", fmt.Errorf("lookup remote %s: %w", name, err)
	}
	defer remote.Free()

	if url := remote.PushUrl(); url != "" {
		return url, nil
	}

	if url := remote.Url(); url != "" {
		return url, nil
	}

	return "", fmt.Errorf("%w: remote %s has no URL", ErrNoRemotes, name)
}

// CredentialCallback resolves libgit2 credentials for a given URL and set of
// allowed credential types. It is called at most once per network attempt;
// a second call (triggered by the first credential being rejected) always
// fails, per the Design Notes on credential retry avoidance.
type CredentialCallback func(url, usernameFromURL string, allowedTypes git2go.CredentialType) (*git2go.Credential, error)

// ProgressCallback receives aggregator-ready notifications as a remote
// operation runs. It must not block; callers that need to coalesce bursts of
// progress should forward through a bounded channel.
type ProgressCallback func(progress.Notification)

// oneShotCredentials wraps a CredentialCallback so only its first
// invocation reaches the caller; every later call returns ErrBadCredentials
// without prompting again. See asyncgit/src/sync/remotes/callbacks.rs for
// the rationale (libgit2 retries forever on a rejected credential otherwise).
func oneShotCredentials(cb CredentialCallback) git2go.CredentialsCallback {
	var called atomic.Bool

	return func(url, usernameFromURL string, allowedTypes git2go.CredentialType) (*git2go.Credential, error) {
		if called.Swap(true) {
			return nil, ErrBadCredentials
		}

		if cb == nil {
			return defaultCredential(usernameFromURL, allowedTypes)
		}

		return cb(url, usernameFromURL, allowedTypes)
	}
}

// defaultCredential mirrors the match arms in Callbacks::credentials: prefer
// the SSH agent for SSH URLs, otherwise fall back to libgit2's default
// credential type.
func defaultCredential(usernameFromURL string, allowedTypes git2go.CredentialType) (*git2go.Credential, error) {
	if allowedTypes&git2go.CredentialTypeSSHKey != 0 {
		if usernameFromURL == "" {
			return nil, errors.New("gitlib: couldn't extract username from url")
		}

		return git2go.NewCredentialSSHKeyFromAgent(usernameFromURL)
	}

	if allowedTypes&git2go.CredentialTypeDefault != 0 {
		return git2go.NewCredentialDefault()
	}

	return nil, errors.New("gitlib: couldn't find credentials")
}

// basicAuthCredentials builds a CredentialCallback from a resolved
// username/password pair, used when the caller (or pkg/cred) already
// extracted explicit credentials instead of delegating to the SSH agent.
func basicAuthCredentials(username, password *string) CredentialCallback {
	return func(_, usernameFromURL string, allowedTypes git2go.CredentialType) (*git2go.Credential, error) {
		switch {
		case allowedTypes&git2go.CredentialTypeSSHKey != 0:
			if usernameFromURL == "" {
				return nil, errors.New("gitlib: couldn't extract username from url")
			}

			return git2go.NewCredentialSSHKeyFromAgent(usernameFromURL)
		case username != nil && password != nil && allowedTypes&git2go.CredentialTypeUserpassPlaintext != 0:
			return git2go.NewCredentialUserpassPlaintext(*username, *password)
		case username != nil && allowedTypes&git2go.CredentialTypeUsername != 0:
			return git2go.NewCredentialUsername(*username)
		case allowedTypes&git2go.CredentialTypeDefault != 0:
			return git2go.NewCredentialDefault()
		default:
			return nil, errors.New("gitlib: couldn't find credentials")
		}
	}
}

// BasicAuthCredentials is the exported constructor pkg/gitjobs uses to turn
// a resolved username/password (see pkg/cred) into a CredentialCallback.
func BasicAuthCredentials(username, password *string) CredentialCallback {
	return basicAuthCredentials(username, password)
}

// remoteCallbacks builds the full git2go.RemoteCallbacks set, forwarding
// transfer/push/pack progress to onProgress and reference rejection
// messages into the returned rejection accumulator, which stays empty until
// the remote rejects a reference.
func remoteCallbacks(cred CredentialCallback, onProgress ProgressCallback) (git2go.RemoteCallbacks, *string) {
	rejected := new(string)

	emit := func(n progress.Notification) {
		if onProgress != nil {
			onProgress(n)
		}
	}

	callbacks := git2go.RemoteCallbacks{
		CredentialsCallback: oneShotCredentials(cred),
		TransferProgressCallback: func(stats git2go.TransferProgress) error {
			emit(progress.Notification{
				Kind:    progress.KindTransfer,
				Current: safeIntFromUint(stats.ReceivedObjects),
				Total:   safeIntFromUint(stats.TotalObjects),
			})

			return nil
		},
		PushTransferProgressCallback: func(current, total uint, bytes uint64) error {
			emit(progress.Notification{
				Kind:    progress.KindPushTransfer,
				Current: safeIntFromUint(current),
				Total:   safeIntFromUint(total),
				Bytes:   safeIntFromUint(uint(bytes)),
			})

			return nil
		},
		PackbuilderProgressCallback: func(stage git2go.PackbuilderStage, current, total uint) git2go.ErrorCode {
			emit(progress.Notification{
				Kind:    progress.KindPacking,
				Current: safeIntFromUint(current),
				Total:   safeIntFromUint(total),
				Stage:   packbuilderStageName(stage),
			})

			return git2go.ErrorCodeOK
		},
		UpdateTipsCallback: func(refname string, a, b *git2go.Oid) git2go.ErrorCode {
			emit(progress.Notification{
				Kind:    progress.KindUpdateTips,
				RefName: refname,
				OldHash: HashFromOid(a).String(),
				NewHash: HashFromOid(b).String(),
			})

			return git2go.ErrorCodeOK
		},
		PushUpdateReferenceCallback: func(refname, status string) git2go.ErrorCode {
			if status != "" {
				*rejected = fmt.Sprintf("%s: %s", refname, status)
			}

			return git2go.ErrorCodeOK
		},
	}

	return callbacks, rejected
}

// pushRefspec composes the {force, delete} flags into the four refspec
// shapes a push can take: "refs/heads/<branch>" (plain), "+refs/heads/..."
// (forced), ":refs/heads/..." (delete), and delete again for forced-delete,
// since a delete refspec has no fast-forward check to force past.
func pushRefspec(branch string, force, deleteRef bool) string {
	ref := "refs/heads/" + branch

	if deleteRef {
		return ":" + ref
	}

	if force {
		return "+" + ref
	}

	return ref
}

func packbuilderStageName(stage git2go.PackbuilderStage) string {
	switch stage {
	case git2go.PackbuilderAddingObjects:
		return "adding-objects"
	case git2go.PackbuilderDeltafication:
		return "deltafication"
	default:
		return "unknown"
	}
}

func safeIntFromUint(v uint) int {
	const maxInt = int(^uint(0) >> 1)
	if uint(maxInt) < v {
		return maxInt
	}

	return int(v)
}

// Fetch downloads objects and refs from the named remote, reporting
// progress through onProgress as it goes.
func (r *Repository) Fetch(remoteName string, credFn CredentialCallback, onProgress ProgressCallback) error {
	remote, err := r.repo.Remotes.Lookup(remoteName)
	if err != nil {
		return fmt.Errorf("lookup remote %s: %w", remoteName, err)
	}
	defer remote.Free()

	callbacks, _ := remoteCallbacks(credFn, onProgress)

	err = remote.Fetch(nil, &git2go.FetchOptions{RemoteCallbacks: callbacks}, "")
	if err != nil {
		return fmt.Errorf("fetch from %s: %w", remoteName, err)
	}

	if onProgress != nil {
		onProgress(progress.Notification{Kind: progress.KindDone})
	}

	return nil
}

// Push uploads the named branch to the named remote. force and delete
// compose into the four modes a push can run in: plain fast-forward-only
// push, forced (non-fast-forward) push, delete the remote branch, or a
// forced delete (delete always wins over force in the refspec, since
// there's nothing left to force once the ref is gone).
func (r *Repository) Push(remoteName, branch string, force, deleteRef bool, credFn CredentialCallback, onProgress ProgressCallback) error {
	remote, err := r.repo.Remotes.Lookup(remoteName)
	if err != nil {
		return fmt.Errorf("lookup remote %s: %w", remoteName, err)
	}
	defer remote.Free()

	callbacks, rejected := remoteCallbacks(credFn, onProgress)

	refspec := pushRefspec(branch, force, deleteRef)

	err = remote.Push([]string{refspec}, &git2go.PushOptions{RemoteCallbacks: callbacks})
	if err != nil {
		return fmt.Errorf("push to %s: %w", remoteName, err)
	}

	if *rejected != "" {
		return fmt.Errorf("%w: %s", ErrPushRejected, *rejected)
	}

	if onProgress != nil {
		onProgress(progress.Notification{Kind: progress.KindDone})
	}

	return nil
}

// PushTags uploads all local tags to the named remote.
func (r *Repository) PushTags(remoteName string, credFn CredentialCallback, onProgress ProgressCallback) error {
	remote, err := r.repo.Remotes.Lookup(remoteName)
	if err != nil {
		return fmt.Errorf("lookup remote %s: %w", remoteName, err)
	}
	defer remote.Free()

	callbacks, rejected := remoteCallbacks(credFn, onProgress)

	err = remote.Push([]string{"refs/tags/*:refs/tags/*"}, &git2go.PushOptions{RemoteCallbacks: callbacks})
	if err != nil {
		return fmt.Errorf("push tags to %s: %w", remoteName, err)
	}

	if *rejected != "" {
		return fmt.Errorf("%w: %s", ErrPushRejected, *rejected)
	}

	if onProgress != nil {
		onProgress(progress.Notification{Kind: progress.KindDone})
	}

	return nil
}
