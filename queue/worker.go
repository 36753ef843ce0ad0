package queue

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/Aussie-Nomad/MacForge-sub002/archive"
	"github.com/Aussie-Nomad/MacForge-sub002/jamf"
)

// Publisher uploads profile bytes to the management server.
type Publisher interface {
	Publish(ctx context.Context, name string, payload []byte) (*jamf.Receipt, error)
}

// Recorder archives publish outcomes.
type Recorder interface {
	SaveEvent(archive.Event) error
}

const defaultInterval = 30 * time.Second

// Worker drains the publish queue. Each job gets exactly one publish
// attempt; a failed job lands on the failed list and the archive, and
// is never retried by the worker. Retry policy belongs to callers.
type Worker struct {
	queue     Datastore
	publisher Publisher
	recorder  Recorder
	logger    log.Logger

	// Interval is the poll delay when the pending list runs empty.
	Interval time.Duration
}

// NewWorker wires a queue drainer.
func NewWorker(queue Datastore, publisher Publisher, recorder Recorder, logger log.Logger) *Worker {
	return &Worker{
		queue:     queue,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		Interval:  defaultInterval,
	}
}

// Run drains the queue until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		if err := w.Drain(ctx); err != nil {
			w.logger.Log("component", "queue", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain processes pending jobs until the queue is empty.
func (w *Worker) Drain(ctx context.Context) error {
	for {
		job, err := w.queue.Dequeue()
		if err != nil {
			return err
		}
		if job == nil {
			return nil
		}
		w.process(ctx, *job)
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	receipt, err := w.publisher.Publish(ctx, job.Name, job.Payload)
	if err != nil {
		w.logger.Log("component", "queue", "profile", job.Name, "err", err)
		if ferr := w.queue.Fail(job); ferr != nil {
			w.logger.Log("component", "queue", "profile", job.Name, "err", ferr)
		}
		w.record(archive.NewEvent(job.Name, job.Identifier, archive.OutcomeFailed, err.Error(), false))
		return
	}
	if err := w.queue.Complete(job); err != nil {
		w.logger.Log("component", "queue", "profile", job.Name, "err", err)
	}
	w.record(archive.NewEvent(job.Name, job.Identifier, archive.OutcomePublished, "", receipt.Updated))
	w.logger.Log("component", "queue", "profile", job.Name, "updated", receipt.Updated)
}

func (w *Worker) record(ev archive.Event) {
	if err := w.recorder.SaveEvent(ev); err != nil {
		w.logger.Log("component", "queue", "err", err)
	}
}
