package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferMessage is the flattened snapshot of a Transfer carried on the work
// queue. It is decoupled from the store row so the worker never holds live
// entity references across the asynchronous boundary.
type TransferMessage struct {
	ID          int64           `json:"id"`
	FromCardID  int64           `json:"fromCardId"`
	ToCardID    int64           `json:"toCardId"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"createdAt"`
	ConfirmedAt *time.Time      `json:"confirmedAt,omitempty"`
	Status      TransferStatus  `json:"status"`
	Version     int64           `json:"version"`
}

// NewTransferMessage builds the queue snapshot for a transfer.
func NewTransferMessage(t *Transfer) *TransferMessage {
	return &TransferMessage{
		ID:          t.ID,
		FromCardID:  t.FromCardID,
		ToCardID:    t.ToCardID,
		Amount:      t.Amount,
		CreatedAt:   t.CreatedAt,
		ConfirmedAt: t.ConfirmedAt,
		Status:      t.Status,
		Version:     t.Version,
	}
}
