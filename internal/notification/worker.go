package notification

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/port"
)

// Sink receives resolved decision notifications. Implementations may write to
// a log, an email gateway or a webhook; a failure is logged and dropped.
type Sink interface {
	Deliver(ctx context.Context, n port.DecisionNotification) error
}

// DefaultQueueSize is the buffered channel capacity of the worker
const DefaultQueueSize = 64

// Worker is an asynchronous notifier backed by a buffered channel. Enqueueing
// never blocks the workflow: when the queue is full the notification is
// dropped and counted, not delivered.
type Worker struct {
	sink   Sink
	logger *zap.Logger

	queue   chan port.DecisionNotification
	stopped chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	dropped int64
}

// NewWorker creates a notification worker draining into the given sink
func NewWorker(sink Sink, queueSize int, logger *zap.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Worker{
		sink:    sink,
		logger:  logger,
		queue:   make(chan port.DecisionNotification, queueSize),
		stopped: make(chan struct{}),
	}
}

// Name returns the worker name
func (w *Worker) Name() string {
	return "decision-notifier"
}

// Start launches the delivery goroutine
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	w.started = true

	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// Stop drains the queue and waits for in-flight deliveries to finish
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.mu.Unlock()

	close(w.stopped)
	w.wg.Wait()

	if dropped := w.Dropped(); dropped > 0 {
		w.logger.Warn("Notifications dropped due to full queue", zap.Int64("count", dropped))
	}
}

// NotifyDecision enqueues a notification without blocking
func (w *Worker) NotifyDecision(n port.DecisionNotification) {
	select {
	case w.queue <- n:
	default:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		w.logger.Warn("Notification queue full, dropping",
			zap.Int64("expense_id", n.ExpenseID),
			zap.String("status", n.Status.String()))
	}
}

// Dropped returns the number of notifications discarded so far
func (w *Worker) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case n := <-w.queue:
			w.deliver(ctx, n)
		case <-w.stopped:
			// Drain whatever was enqueued before Stop
			for {
				select {
				case n := <-w.queue:
					w.deliver(ctx, n)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, n port.DecisionNotification) {
	if err := w.sink.Deliver(ctx, n); err != nil {
		w.logger.Error("Failed to deliver notification",
			zap.Int64("expense_id", n.ExpenseID),
			zap.Int64("employee_id", n.EmployeeID),
			zap.Error(err))
		return
	}
	w.logger.Debug("Notification delivered",
		zap.Int64("expense_id", n.ExpenseID),
		zap.String("status", n.Status.String()))
}

var _ port.Notifier = (*Worker)(nil)

// LogSink writes notifications to the application log. It is the default
// sink when no external channel is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log-backed sink
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver logs the notification
func (s *LogSink) Deliver(_ context.Context, n port.DecisionNotification) error {
	s.logger.Info("Expense decision",
		zap.Int64("expense_id", n.ExpenseID),
		zap.Int64("employee_id", n.EmployeeID),
		zap.Int64("approver_id", n.ApproverID),
		zap.String("status", n.Status.String()),
		zap.String("comment", n.Comment))
	return nil
}
