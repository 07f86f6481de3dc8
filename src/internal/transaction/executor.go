package transaction

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pahkat/src/internal/download"
	"pahkat/src/internal/pahkattype"
	"pahkat/src/internal/store"
	"pahkat/src/internal/telemetry"
)

// EventKind discriminates a Transaction event.
type EventKind int

const (
	TransactionStarted EventKind = iota
	DownloadProgress
	DownloadComplete
	InstallStarted
	UninstallStarted
	TransactionProgress
	TransactionComplete
	TransactionError
)

func (k EventKind) String() string {
	switch k {
	case TransactionStarted:
		return "TransactionStarted"
	case DownloadProgress:
		return "DownloadProgress"
	case DownloadComplete:
		return "DownloadComplete"
	case InstallStarted:
		return "InstallStarted"
	case UninstallStarted:
		return "UninstallStarted"
	case TransactionProgress:
		return "TransactionProgress"
	case TransactionComplete:
		return "TransactionComplete"
	case TransactionError:
		return "TransactionError"
	default:
		return "Unknown"
	}
}

// Event is one entry of a transaction's event stream.
type Event struct {
	RunID   uuid.UUID
	Kind    EventKind
	Key     pahkattype.PackageKey
	Current int64
	Total   int64
	Done    int
	Steps   int
	Phase   string
	Actions []Action
	Reason  error
}

// ErrCancelled is the terminal reason reported when a caller's
// cancellation handle fires before the plan completes.
var ErrCancelled = download.ErrCancelled

// DefaultParallelism is the default number of downloads the engine keeps
// in flight ahead of the sequential install/uninstall cursor.
const DefaultParallelism = 1

// Transaction drives one built Plan to completion.
type Transaction struct {
	plan        *Plan
	store       store.Store
	downloads   *download.Manager
	snapshot    map[string]*pahkattype.Index
	parallelism int
}

// New builds a Transaction for plan, to be applied via s and dl against
// snapshot for status bookkeeping.
func New(plan *Plan, s store.Store, dl *download.Manager, snapshot map[string]*pahkattype.Index, parallelism int) *Transaction {
	if parallelism < 1 {
		parallelism = DefaultParallelism
	}
	return &Transaction{plan: plan, store: s, downloads: dl, snapshot: snapshot, parallelism: parallelism}
}

// Canceler flips a cooperative cancellation flag observed by the
// download progress callback and between plan steps.
type Canceler struct {
	cancelled atomic.Bool
	cancel    context.CancelFunc
}

// Cancel requests that the transaction stop as soon as it reaches a
// suspension point. In-flight tar extraction is not interrupted.
func (c *Canceler) Cancel() {
	c.cancelled.Store(true)
	c.cancel()
}

// Process executes the plan, returning a cancellation handle and an
// event channel that is closed after the terminal event.
func (t *Transaction) Process(ctx context.Context) (*Canceler, <-chan Event) {
	ctx, cancel := context.WithCancel(ctx)
	c := &Canceler{cancel: cancel}
	events := make(chan Event, 16)
	runID := uuid.New()

	go t.run(ctx, c, runID, events)

	return c, events
}

// downloadResult is handed from a download worker to the sequential
// install cursor for one install step.
type downloadResult struct {
	path string
	err  error
}

func (t *Transaction) run(ctx context.Context, c *Canceler, runID uuid.UUID, events chan<- Event) {
	defer close(events)
	done := telemetry.StartSpan("transaction.run", "run_id", runID.String(), "steps", len(t.plan.steps))

	emit := func(ev Event) {
		ev.RunID = runID
		events <- ev
	}

	emit(Event{Kind: TransactionStarted, Actions: t.plan.Actions(), Steps: len(t.plan.steps)})

	results := make([]chan downloadResult, len(t.plan.steps))
	for i, s := range t.plan.steps {
		if s.action.Kind == Install {
			results[i] = make(chan downloadResult, 1)
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.runDownloads(ctx, c, emit, results)
	}()

	for i, s := range t.plan.steps {
		if c.cancelled.Load() {
			wg.Wait()
			emit(Event{Kind: TransactionError, Reason: ErrCancelled})
			done("status", "cancelled")
			return
		}

		switch s.action.Kind {
		case Install:
			dr := <-results[i]
			if dr.err != nil {
				wg.Wait()
				reason := dr.err
				if c.cancelled.Load() {
					reason = ErrCancelled
				}
				emit(Event{Kind: TransactionError, Key: s.action.Key, Reason: reason})
				done("status", "error", "error", dr.err.Error())
				return
			}
			emit(Event{Kind: DownloadComplete, Key: s.action.Key})

			if c.cancelled.Load() {
				wg.Wait()
				emit(Event{Kind: TransactionError, Reason: ErrCancelled})
				done("status", "cancelled")
				return
			}

			emit(Event{Kind: InstallStarted, Key: s.action.Key})
			if _, err := t.store.Install(context.Background(), s.action.Key, s.resolved); err != nil {
				wg.Wait()
				emit(Event{Kind: TransactionError, Key: s.action.Key, Reason: err})
				done("status", "error", "error", err.Error())
				return
			}

		case Uninstall:
			emit(Event{Kind: UninstallStarted, Key: s.action.Key})
			if _, err := t.store.Uninstall(context.Background(), s.action.Key); err != nil {
				wg.Wait()
				emit(Event{Kind: TransactionError, Key: s.action.Key, Reason: err})
				done("status", "error", "error", err.Error())
				return
			}
		}

		emit(Event{Kind: TransactionProgress, Key: s.action.Key, Done: i + 1, Steps: len(t.plan.steps), Phase: s.action.Kind.String()})
	}

	wg.Wait()
	emit(Event{Kind: TransactionComplete})
	done("status", "ok")
}

// runDownloads fetches every install step's payload, up to t.parallelism
// concurrently, publishing each result on its step's channel as it
// completes. Progress events are funneled onto the shared events channel
// as DownloadProgress.
func (t *Transaction) runDownloads(ctx context.Context, c *Canceler, emit func(Event), results []chan downloadResult) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.parallelism)

	for i, s := range t.plan.steps {
		if s.action.Kind != Install {
			continue
		}
		i, s := i, s
		g.Go(func() error {
			key := s.action.Key
			payload := s.resolved.Target.Payload
			path, err := t.downloads.Download(gctx, payload.URL(), payload.ContentHash(), payload.ContentLength(), func(cur, total int64) bool {
				emit(Event{Kind: DownloadProgress, Key: key, Current: cur, Total: total})
				return !c.cancelled.Load()
			})
			results[i] <- downloadResult{path: path, err: err}
			return nil
		})
	}

	_ = g.Wait()
}
