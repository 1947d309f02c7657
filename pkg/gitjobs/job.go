// Package gitjobs exposes one job-handle type per long-running git
// operation (diff, commit files, blame, file history, fetch, push,
// push-tags), each built on pkg/asyncjob.SingleJob so the caller's UI loop
// can spawn a request and keep rendering while the result arrives on a
// notification bus.
package gitjobs

import (
	"errors"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/asyncgit/pkg/progress"
)

// Kind identifies which job produced a Notification, the closed
// enumeration from the external-interface surface.
type Kind int

const (
	// KindStatus reports overall repository status changes.
	KindStatus Kind = iota
	// KindLog reports log-walk progress.
	KindLog
	// KindCommitFiles reports a commit-files diff result.
	KindCommitFiles
	// KindDiff reports a diff job result.
	KindDiff
	// KindFetch reports fetch completion.
	KindFetch
	// KindPush reports push completion.
	KindPush
	// KindPushTags reports push-tags completion.
	KindPushTags
	// KindBlame reports a blame job result.
	KindBlame
	// KindFileHistory reports a file-history job result.
	KindFileHistory
	// KindFinishUnchanged reports that a job finished with no change from
	// its last completed result (the idempotent-repeat-request case).
	KindFinishUnchanged
	// KindTags reports a tag-list refresh.
	KindTags
	// KindBranches reports a branch-list refresh.
	KindBranches
	// KindFetchProgress reports an intermediate fetch transfer tick. It is
	// distinct from KindFetch so a waiter blocking for fetch completion
	// never mistakes an in-flight progress update for the finished result.
	KindFetchProgress
	// KindPushProgress reports an intermediate push transfer tick, for the
	// same reason KindFetchProgress is distinct from KindFetch.
	KindPushProgress
	// KindPushTagsProgress reports an intermediate push-tags transfer tick,
	// for the same reason KindFetchProgress is distinct from KindFetch.
	KindPushTagsProgress
	// KindLogProgress reports a log walk's growing commit list after each
	// batch read from the walker, distinct from KindLog (the run's final
	// notification) for the same reason KindFetchProgress is distinct from
	// KindFetch.
	KindLogProgress
	// KindFileHistoryProgress reports a file-history walk's growing delta
	// list after each batch, distinct from KindFileHistory for the same
	// reason KindFetchProgress is distinct from KindFetch.
	KindFileHistoryProgress
)

// ErrCancelled is returned by a job's run function when its context is
// cancelled before the underlying git operation completes.
var ErrCancelled = errors.New("gitjobs: cancelled")

// ErrRemoteRejected names a push the remote refused. No job in this package
// returns it: PushJob and PushTagsJob report a refused reference with an
// error wrapping gitlib.ErrPushRejected, which carries the remote's message.
var ErrRemoteRejected = errors.New("gitjobs: remote rejected push")

// Notification is what a job handle publishes to its asyncjob.Bus once a
// run completes.
type Notification struct {
	Kind      Kind
	RequestID uuid.UUID
	Err       error
	Progress  progress.RemoteProgress
}

// newRequestID mints a random id of the type Notification.RequestID holds.
// Nothing in this package calls it: every notification the jobs send leaves
// RequestID as the zero UUID.
func newRequestID() uuid.UUID {
	return uuid.New()
}
