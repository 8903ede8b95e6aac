package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bankrest/cardtransfer/internal/apperr"
	"github.com/bankrest/cardtransfer/internal/models"
	"github.com/shopspring/decimal"
)

const cardColumns = `id, card_type, number, expiration, status, balance, hold, owner_id, is_deleted, version`

func scanCard(row *sql.Row) (*models.Card, error) {
	card := &models.Card{}
	err := row.Scan(&card.ID, &card.Type, &card.Number, &card.Expiration, &card.Status,
		&card.Balance, &card.Hold, &card.OwnerID, &card.IsDeleted, &card.Version)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: card", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan card: %w", err)
	}
	return card, nil
}

// CardByID retrieves a card by id.
func (u *unitOfWork) CardByID(ctx context.Context, id int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	return scanCard(u.q.QueryRowContext(ctx, query, id))
}

// CardByIDForUpdate retrieves a card by id under an exclusive row lock.
func (u *unitOfWork) CardByIDForUpdate(ctx context.Context, id int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 FOR UPDATE`
	return scanCard(u.q.QueryRowContext(ctx, query, id))
}

// CardIfBalanceAtLeast retrieves a card only when its spendable balance
// covers amount. The predicate is evaluated by the database, so a stale
// balance read can never pass validation that a concurrent transfer has
// already invalidated.
func (u *unitOfWork) CardIfBalanceAtLeast(ctx context.Context, id int64, amount decimal.Decimal) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 AND balance >= $2`
	return scanCard(u.q.QueryRowContext(ctx, query, id, amount))
}

// CardIDByNumber resolves a card id from its number.
func (u *unitOfWork) CardIDByNumber(ctx context.Context, number string) (int64, error) {
	var id int64
	err := u.q.QueryRowContext(ctx, `SELECT id FROM cards WHERE number = $1`, number).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: card number", apperr.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve card number: %w", err)
	}
	return id, nil
}

// CardOwnerID retrieves the owner id of a card.
func (u *unitOfWork) CardOwnerID(ctx context.Context, id int64) (int64, error) {
	var ownerID int64
	err := u.q.QueryRowContext(ctx, `SELECT owner_id FROM cards WHERE id = $1`, id).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: card", apperr.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find card owner: %w", err)
	}
	return ownerID, nil
}

// SaveCard persists the card's mutable fields with an optimistic version
// compare-and-swap. A missed swap surfaces as apperr.ErrVersionConflict.
func (u *unitOfWork) SaveCard(ctx context.Context, card *models.Card) error {
	query := `
		UPDATE cards
		SET status = $1, balance = $2, hold = $3, is_deleted = $4, version = version + 1
		WHERE id = $5 AND version = $6`
	res, err := u.q.ExecContext(ctx, query,
		card.Status, card.Balance, card.Hold, card.IsDeleted, card.ID, card.Version)
	if err != nil {
		return fmt.Errorf("failed to save card: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save card: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: card id %d version %d", apperr.ErrVersionConflict, card.ID, card.Version)
	}
	card.Version++
	return nil
}
