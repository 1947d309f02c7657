package gitjobs

import (
	"context"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/asyncgit/pkg/asyncjob"
	"github.com/Sumatoshi-tech/asyncgit/pkg/observability"
)

// kindLabel names a Kind for the "op" attribute on the teacher's generic
// RED metrics (pkg/observability.REDMetrics), reused here unchanged: the
// instrument set (requests.total, request.duration.seconds, errors.total,
// inflight.requests) is domain-agnostic and needed one label function, not
// a rewrite.
func kindLabel(k Kind) string {
	switch k {
	case KindStatus:
		return "status"
	case KindLog:
		return "log"
	case KindCommitFiles:
		return "commit_files"
	case KindDiff:
		return "diff"
	case KindFetch:
		return "fetch"
	case KindPush:
		return "push"
	case KindPushTags:
		return "push_tags"
	case KindBlame:
		return "blame"
	case KindFileHistory:
		return "file_history"
	case KindFinishUnchanged:
		return "finish_unchanged"
	case KindTags:
		return "tags"
	case KindBranches:
		return "branches"
	case KindFetchProgress:
		return "fetch_progress"
	case KindPushProgress:
		return "push_progress"
	case KindPushTagsProgress:
		return "push_tags_progress"
	case KindLogProgress:
		return "log_progress"
	case KindFileHistoryProgress:
		return "file_history_progress"
	default:
		return "unknown"
	}
}

// InstrumentedBus pairs a Bus[Notification] with RED metrics. It does not
// intercept notifications: a consumer reads them from Recv and hands each
// one to Record, which records one sample. Every job handle in this package
// publishes onto the same bus, so one InstrumentedBus covers all of C7/C8
// without threading a metrics dependency through each job constructor.
type InstrumentedBus struct {
	bus     *asyncjob.Bus[Notification]
	metrics *observability.REDMetrics

	mu     sync.Mutex
	starts map[Kind]time.Time
}

// NewInstrumentedBus wraps bus, recording onto metrics. Spawn callers should
// call MarkStart before spawning a job so the wrapper can attribute a
// duration to the notification that eventually arrives.
func NewInstrumentedBus(bus *asyncjob.Bus[Notification], metrics *observability.REDMetrics) *InstrumentedBus {
	return &InstrumentedBus{bus: bus, metrics: metrics, starts: make(map[Kind]time.Time)}
}

// MarkStart records when a request of the given kind was spawned, so the
// matching completion notification can be reported with a duration.
func (ib *InstrumentedBus) MarkStart(kind Kind) {
	ib.mu.Lock()
	ib.starts[kind] = time.Now()
	ib.mu.Unlock()
}

// Record reports one completed notification to the underlying RED metrics,
// using the time recorded by the most recent MarkStart for n.Kind (zero if
// none was recorded, e.g. a notification this process did not itself
// request).
func (ib *InstrumentedBus) Record(ctx context.Context, n Notification) {
	if ib.metrics == nil {
		return
	}

	status := "ok"
	if n.Err != nil {
		status = "error"
	}

	ib.mu.Lock()
	start, ok := ib.starts[n.Kind]
	if ok {
		delete(ib.starts, n.Kind)
	}
	ib.mu.Unlock()

	var duration time.Duration
	if ok {
		duration = time.Since(start)
	}

	ib.metrics.RecordRequest(ctx, kindLabel(n.Kind), status, duration)
}

// Recv exposes the wrapped bus's receive channel directly: consumers that
// want metrics call Record themselves after reading a notification, keeping
// this wrapper a thin recorder rather than a second bus implementation.
func (ib *InstrumentedBus) Recv() <-chan Notification {
	return ib.bus.Recv()
}
