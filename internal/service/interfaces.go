package service

import (
	"context"

	"github.com/bankrest/cardtransfer/internal/models"
)

// Requester is the narrow capability handed to external callers. It can only
// admit new transfers and read their status; it cannot finalize or roll back.
type Requester interface {
	CreateTransferRequest(ctx context.Context, req models.MoneyTransferRequest) (int64, error)
	TransferByID(ctx context.Context, id int64) (*models.Transfer, error)
}

// Processor is the internal capability wired only into the worker and the
// sweepers. Request-handling code must never hold it: compensation from the
// request path would race the asynchronous pipeline.
type Processor interface {
	Confirm(ctx context.Context, msg *models.TransferMessage) error
	Compensate(ctx context.Context, msg *models.TransferMessage) error
	CancelPendingTransfers(ctx context.Context) error
}

// Enqueuer is the outbound side of the work queue used at admission time.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *models.TransferMessage) error
}
