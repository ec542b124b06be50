package journal

import (
	"context"
	"sync"

	"github.com/huntsman-telescope/huntsman-core/internal/statemachine"
)

const defaultQueueSize = 256

// Logger is the logging surface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

type write func(ctx context.Context, repo Repository) error

// Recorder is a statemachine.Observer that journals transitions and park
// attempts. Engine callbacks only enqueue; Run does the writes. Entries
// are dropped with a warning when the queue is full.
type Recorder struct {
	statemachine.NopObserver

	repo   Repository
	logger Logger
	queue  chan write

	mu    sync.Mutex
	runID string
}

// NewRecorder returns a recorder writing to repo.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan write, defaultQueueSize),
	}
}

// OnTransition implements statemachine.Observer.
func (r *Recorder) OnTransition(t statemachine.Transition) {
	r.mu.Lock()
	r.runID = t.RunID
	r.mu.Unlock()

	e := &Entry{
		RunID:         t.RunID,
		From:          string(t.From),
		To:            string(t.To),
		Forced:        t.Forced,
		Duration:      t.Duration,
		ObservationID: t.ObservationID,
		At:            t.At,
	}
	r.enqueue("transition", func(ctx context.Context, repo Repository) error {
		return repo.Record(ctx, e)
	})
}

// OnParkAttempt implements statemachine.Observer.
func (r *Recorder) OnParkAttempt(attempt int, err error) {
	r.mu.Lock()
	p := &ParkAttempt{RunID: r.runID, Attempt: attempt}
	r.mu.Unlock()
	if err != nil {
		p.Error = err.Error()
	}
	r.enqueue("park attempt", func(ctx context.Context, repo Repository) error {
		return repo.RecordParkAttempt(ctx, p)
	})
}

func (r *Recorder) enqueue(kind string, w write) {
	select {
	case r.queue <- w:
	default:
		r.logger.Warn("journal queue full, dropping entry", "kind", kind)
	}
}

// Run writes queued entries until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case w := <-r.queue:
			r.apply(writeCtx, w)
		case <-ctx.Done():
			for {
				select {
				case w := <-r.queue:
					r.apply(writeCtx, w)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Recorder) apply(ctx context.Context, w write) {
	if err := w(ctx, r.repo); err != nil {
		r.logger.Warn("journal write failed", "error", err)
	}
}
