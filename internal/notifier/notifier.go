// Package notifier consumes the confirmed-transfer queue and e-mails the
// sender. Losing a notification is acceptable, so messages are popped
// without the pop/park pattern used for money movement.
package notifier

import (
	"context"

	"github.com/bankrest/cardtransfer/internal/models"
	"github.com/sirupsen/logrus"
)

type confirmedSource interface {
	PopTail(ctx context.Context) (*models.TransferMessage, error)
}

type mailSender interface {
	SendTransferConfirmation(to, username string, msg *models.TransferMessage) error
}

type ownerDirectory interface {
	CardOwnerID(ctx context.Context, id int64) (int64, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
}

// Notifier turns confirmed-transfer messages into e-mails.
type Notifier struct {
	queue  confirmedSource
	store  ownerDirectory
	sender mailSender
	log    *logrus.Logger
}

// NewNotifier initializes a new notifier.
func NewNotifier(q confirmedSource, store ownerDirectory, sender mailSender, log *logrus.Logger) *Notifier {
	return &Notifier{queue: q, store: store, sender: sender, log: log}
}

// Process handles one confirmed transfer per invocation, matching the poll
// cadence of the worker.
func (n *Notifier) Process(ctx context.Context) {
	msg, err := n.queue.PopTail(ctx)
	if err != nil {
		n.log.Errorf("Failed to pop confirmed transfer: %v", err)
		return
	}
	if msg == nil {
		return
	}
	n.log.Infof("Processing confirmed transfer from queue: %d", msg.ID)

	ownerID, err := n.store.CardOwnerID(ctx, msg.FromCardID)
	if err != nil {
		n.log.Errorf("Failed to resolve owner of card %d: %v", msg.FromCardID, err)
		return
	}
	owner, err := n.store.UserByID(ctx, ownerID)
	if err != nil {
		n.log.Errorf("Failed to load user %d: %v", ownerID, err)
		return
	}

	if err := n.sender.SendTransferConfirmation(owner.Email, owner.Username, msg); err != nil {
		n.log.Errorf("Failed to notify user %d about transfer %d: %v", ownerID, msg.ID, err)
	}
}
