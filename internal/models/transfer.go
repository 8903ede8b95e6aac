package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus is the lifecycle state of a transfer. COMPLETED and FAILED
// are terminal.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "PENDING"
	TransferStatusCompleted TransferStatus = "COMPLETED"
	TransferStatusFailed    TransferStatus = "FAILED"
)

// Terminal reports whether the status allows no further transitions.
func (s TransferStatus) Terminal() bool {
	return s == TransferStatusCompleted || s == TransferStatusFailed
}

// Transfer represents the intent to move money between two cards. Rows are
// never deleted; they end up COMPLETED or FAILED.
type Transfer struct {
	ID          int64           `json:"id"`
	FromCardID  int64           `json:"from_card_id"`
	ToCardID    int64           `json:"to_card_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      TransferStatus  `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
	Version     int64           `json:"version"`
}

// MoneyTransferRequest is the DTO for incoming transfer requests. Each card
// may be referenced by id or by number; at least one of the pair is required.
type MoneyTransferRequest struct {
	FromCardID     *int64          `json:"from_card_id" validate:"required_without=FromCardNumber"`
	FromCardNumber string          `json:"from_card_number" validate:"required_without=FromCardID"`
	ToCardID       *int64          `json:"to_card_id" validate:"required_without=ToCardNumber"`
	ToCardNumber   string          `json:"to_card_number" validate:"required_without=ToCardID"`
	Amount         decimal.Decimal `json:"amount" validate:"-"`
}
