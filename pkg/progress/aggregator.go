// Package progress aggregates the low-level notifications a remote git
// operation (fetch, push, push-tags) emits into the single
// phase-plus-percent shape a status line can render directly.
package progress

// Kind identifies which libgit2 remote callback produced a Notification.
type Kind int

const (
	// KindUpdateTips fires once per updated reference after a fetch or push.
	KindUpdateTips Kind = iota
	// KindTransfer fires while objects are received from the remote.
	KindTransfer
	// KindPushTransfer fires while objects are sent to the remote.
	KindPushTransfer
	// KindPacking fires while the local pack builder is running.
	KindPacking
	// KindDone marks the end of the operation; no further notifications follow.
	KindDone
)

// Notification is the Go-side counterpart of the libgit2 remote callback
// payloads (transfer_progress, push_transfer_progress, pack_progress,
// update_tips). Only the fields relevant to Kind are populated.
type Notification struct {
	Kind Kind

	// Populated for KindUpdateTips.
	RefName string
	OldHash string
	NewHash string

	// Populated for KindTransfer, KindPushTransfer, KindPacking.
	Current int
	Total   int

	// Populated for KindPushTransfer.
	Bytes int

	// Populated for KindPacking.
	Stage string
}

// Phase name constants, the literal strings the progress-aggregator table
// names for each notification kind. Packing has no constant of its own: its
// phase is the notification's own Stage value.
const (
	PhaseTransfer     = "Transfer"
	PhasePushTransfer = "Pushing"
	PhaseUpdateTips   = "UpdateTips"
	PhaseDone         = "Done"
)

// RemoteProgress is the aggregated, UI-ready view of a remote operation: the
// phase name a status line renders verbatim, plus a 0-100 completion
// percentage.
type RemoteProgress struct {
	Phase   string
	Percent int // 0-100
}

// Aggregate reduces a single Notification into a RemoteProgress, following
// the progress-aggregator's table exactly: Packing reports its own stage
// name as the phase, PushTransfer reports "Pushing", Transfer reports
// "Transfer", and both UpdateTips and Done report 100% complete under their
// own phase name.
func Aggregate(n Notification) RemoteProgress {
	switch n.Kind {
	case KindPacking:
		return RemoteProgress{Phase: n.Stage, Percent: Percent(n.Current, n.Total)}
	case KindPushTransfer:
		return RemoteProgress{Phase: PhasePushTransfer, Percent: Percent(n.Current, n.Total)}
	case KindTransfer:
		return RemoteProgress{Phase: PhaseTransfer, Percent: Percent(n.Current, n.Total)}
	case KindUpdateTips:
		return RemoteProgress{Phase: PhaseUpdateTips, Percent: full}
	case KindDone:
		return RemoteProgress{Phase: PhaseDone, Percent: full}
	default:
		return RemoteProgress{Phase: "", Percent: 0}
	}
}

const full = 100

// Percent computes a clamped 0-100 completion percentage. A zero or negative
// total is treated as already complete, matching libgit2's habit of reporting
// total=0 for operations with nothing to transfer.
func Percent(current, total int) int {
	if total <= 0 {
		return full
	}

	pct := current * full / total

	switch {
	case pct < 0:
		return 0
	case pct > full:
		return full
	default:
		return pct
	}
}
