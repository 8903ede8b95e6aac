// Package worker drains the transfer work queue and runs the recovery
// sweeps. It is the only holder of the service's Processor capability
// besides the schedulers wired in main.
package worker

import (
	"context"
	"time"

	"github.com/bankrest/cardtransfer/internal/models"
	"github.com/bankrest/cardtransfer/internal/queue"
	"github.com/bankrest/cardtransfer/internal/service"
	"github.com/sirupsen/logrus"
)

// transferQueue is the inbound side of the work queue.
type transferQueue interface {
	Pop(ctx context.Context) (*queue.Delivery, error)
	Ack(ctx context.Context, d *queue.Delivery) error
	RequeueExpired(ctx context.Context, now time.Time) (int, error)
}

// Worker pops transfer messages, confirms them, and compensates the ones
// that cannot be confirmed.
type Worker struct {
	queue     transferQueue
	confirmed service.Enqueuer
	processor service.Processor
	log       *logrus.Logger
}

// NewWorker initializes a new worker.
func NewWorker(q transferQueue, confirmed service.Enqueuer, processor service.Processor, log *logrus.Logger) *Worker {
	return &Worker{queue: q, confirmed: confirmed, processor: processor, log: log}
}

// ProcessQueue drains the queue until it is empty. Against an empty queue it
// is a strict no-op.
//
// Successful confirmations are acknowledged and announced on the confirmed
// queue. On failure the transfer is compensated but the delivery is left in
// the processing list; once its lease expires the stuck sweep returns it to
// the main queue, and the redelivery acknowledges as a no-op because the
// transfer is already terminal.
func (w *Worker) ProcessQueue(ctx context.Context) {
	for {
		delivery, err := w.queue.Pop(ctx)
		if err != nil {
			w.log.Errorf("Failed to pop transfer message: %v", err)
			return
		}
		if delivery == nil {
			return
		}

		msg := delivery.Message
		if err := w.processor.Confirm(ctx, msg); err != nil {
			w.log.Errorf("Failed to process transfer %d, will stay in processing queue: %v", msg.ID, err)
			if cErr := w.processor.Compensate(ctx, msg); cErr != nil {
				w.log.Errorf("Compensation failed for transfer %d: %v", msg.ID, cErr)
			}
			continue
		}

		if err := w.queue.Ack(ctx, delivery); err != nil {
			w.log.Errorf("Failed to ack transfer %d: %v", msg.ID, err)
			continue
		}
		w.log.Infof("Successfully processed and removed transfer message: %d", msg.ID)

		if msg.Status == models.TransferStatusCompleted {
			if err := w.confirmed.Enqueue(ctx, msg); err != nil {
				w.log.Errorf("Failed to announce confirmed transfer %d: %v", msg.ID, err)
			}
		}
	}
}

// RequeueStuck returns abandoned in-flight messages to the main queue.
func (w *Worker) RequeueStuck(ctx context.Context) {
	n, err := w.queue.RequeueExpired(ctx, time.Now())
	if err != nil {
		w.log.Errorf("Failed to requeue stuck messages: %v", err)
		return
	}
	if n > 0 {
		w.log.Warnf("Requeued %d stuck messages back to the main queue", n)
	}
}
