package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// CardStatus is the lifecycle state of a card.
type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
	CardStatusExpired CardStatus = "EXPIRED"
)

// LockedForTransfer reports whether the card may take part in a transfer.
func (s CardStatus) LockedForTransfer() bool {
	return s == CardStatusBlocked || s == CardStatusExpired
}

// CardType distinguishes debit and credit cards.
type CardType string

const (
	CardTypeDebit  CardType = "DEBIT"
	CardTypeCredit CardType = "CREDIT"
)

var (
	ErrInsufficientAvailableBalance = errors.New("insufficient available balance to hold funds")
	ErrReleaseExceedsHold           = errors.New("cannot release more than is held")
)

// Card represents a bank card with a spendable balance and a hold bucket.
// Invariant: Balance >= 0 and Hold >= 0 at all times.
type Card struct {
	ID         int64           `json:"id"`
	Type       CardType        `json:"type"`
	Number     string          `json:"number"`
	Expiration time.Time       `json:"expiration"`
	Status     CardStatus      `json:"status"`
	Balance    decimal.Decimal `json:"balance"`
	Hold       decimal.Decimal `json:"hold"`
	OwnerID    int64           `json:"owner_id"`
	IsDeleted  bool            `json:"is_deleted"`
	Version    int64           `json:"version"`
}

// AddToHold earmarks amount for an in-flight transfer: the spendable balance
// is debited and the hold bucket credited by the same amount.
func (c *Card) AddToHold(amount decimal.Decimal) error {
	if c.Balance.LessThan(amount) {
		return ErrInsufficientAvailableBalance
	}
	c.Hold = c.Hold.Add(amount)
	c.Balance = c.Balance.Sub(amount)
	return nil
}

// ReleaseFromHold removes amount from the hold bucket. The balance is not
// restored here; a caller cancelling a transfer must credit it separately.
func (c *Card) ReleaseFromHold(amount decimal.Decimal) error {
	if c.Hold.LessThan(amount) {
		return ErrReleaseExceedsHold
	}
	c.Hold = c.Hold.Sub(amount)
	return nil
}
