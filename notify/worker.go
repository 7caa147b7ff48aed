package notify

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"taskboard-api/storage"
)

const idleDelay = 5 * time.Second

// JobQueue is the session-job queue surface the worker consumes.
type JobQueue interface {
	DequeueSessionJob(ctx context.Context) (*storage.QueuedSessionJob, error)
	DeleteSessionJob(ctx context.Context, messageID, popReceipt string) error
}

// Worker drains the session queue and runs the generator per job. Jobs
// are best effort: a failed run is logged, the message is deleted and
// the loop moves on, so a bad job can never wedge the queue.
type Worker struct {
	queue JobQueue
	gen   *Generator
	log   *log.Logger
}

// NewWorker creates a queue worker.
func NewWorker(queue JobQueue, gen *Generator, logger *log.Logger) *Worker {
	return &Worker{queue: queue, gen: gen, log: logger}
}

// Run loops until ctx is cancelled, processing one message at a time.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !w.processOne(ctx) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleDelay):
			}
		}
	}
}

// processOne handles a single queue message. It returns false when the
// queue was empty or unreachable, signalling the caller to back off.
func (w *Worker) processOne(ctx context.Context) bool {
	msg, err := w.queue.DequeueSessionJob(ctx)
	if err != nil {
		w.log.WithField("error", err.Error()).Warn("session queue dequeue failed")
		return false
	}
	if msg == nil {
		return false
	}

	var job storage.SessionJob
	if err := sonic.Unmarshal([]byte(msg.Body), &job); err != nil {
		w.log.WithField("error", err.Error()).Error("malformed session job; dropping")
	} else if err := w.gen.Run(ctx, job.UserID); err != nil {
		w.log.WithFields(log.Fields{"user": job.UserID, "error": err.Error()}).
			Error("session notification run failed")
	}

	if err := w.queue.DeleteSessionJob(ctx, msg.MessageID, msg.PopReceipt); err != nil {
		w.log.WithField("error", err.Error()).Warn("session job delete failed")
	}
	return true
}
