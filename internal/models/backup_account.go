package models

import "github.com/shopspring/decimal"

// SourceOfFunds tags where escrowed money came from.
type SourceOfFunds string

const SourceOfFundsBankCard SourceOfFunds = "BANK_CARD"

// Sender data keys recorded alongside escrowed funds.
const (
	SenderDataFullName     = "FULL_NAME"
	SenderDataDocumentType = "DOCUMENT_TYPE"
	SenderDataNote         = "NOTE"
)

// BackupAccount is a per-owner escrow accumulator. It receives funds that a
// compensation could not return to a locked card and is only ever drained
// manually.
type BackupAccount struct {
	ID            int64             `json:"id"`
	OwnerID       int64             `json:"owner_id"`
	Amount        decimal.Decimal   `json:"amount"`
	SourceOfFunds SourceOfFunds     `json:"source_of_funds"`
	SenderData    map[string]string `json:"sender_data"`
}
