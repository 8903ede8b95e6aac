package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bankrest/cardtransfer/internal/apperr"
	"github.com/bankrest/cardtransfer/internal/models"
)

const transferColumns = `id, from_card_id, to_card_id, amount, status, created_at, confirmed_at, version`

func scanTransfer(row *sql.Row) (*models.Transfer, error) {
	t := &models.Transfer{}
	var confirmedAt sql.NullTime
	err := row.Scan(&t.ID, &t.FromCardID, &t.ToCardID, &t.Amount, &t.Status,
		&t.CreatedAt, &confirmedAt, &t.Version)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: transfer", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transfer: %w", err)
	}
	if confirmedAt.Valid {
		t.ConfirmedAt = &confirmedAt.Time
	}
	return t, nil
}

// CreateTransfer inserts a new transfer row and fills in its id.
func (u *unitOfWork) CreateTransfer(ctx context.Context, transfer *models.Transfer) error {
	query := `
		INSERT INTO transfers (from_card_id, to_card_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, version`
	err := u.q.QueryRowContext(ctx, query,
		transfer.FromCardID, transfer.ToCardID, transfer.Amount, transfer.Status, transfer.CreatedAt).
		Scan(&transfer.ID, &transfer.Version)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

// TransferByID retrieves a transfer by id.
func (u *unitOfWork) TransferByID(ctx context.Context, id int64) (*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	return scanTransfer(u.q.QueryRowContext(ctx, query, id))
}

// TransferByIDForUpdate retrieves a transfer by id under an exclusive row lock.
func (u *unitOfWork) TransferByIDForUpdate(ctx context.Context, id int64) (*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1 FOR UPDATE`
	return scanTransfer(u.q.QueryRowContext(ctx, query, id))
}

// SaveTransfer persists status and confirmation time with an optimistic
// version compare-and-swap.
func (u *unitOfWork) SaveTransfer(ctx context.Context, transfer *models.Transfer) error {
	var confirmedAt sql.NullTime
	if transfer.ConfirmedAt != nil {
		confirmedAt = sql.NullTime{Time: *transfer.ConfirmedAt, Valid: true}
	}
	query := `
		UPDATE transfers
		SET status = $1, confirmed_at = $2, version = version + 1
		WHERE id = $3 AND version = $4`
	res, err := u.q.ExecContext(ctx, query, transfer.Status, confirmedAt, transfer.ID, transfer.Version)
	if err != nil {
		return fmt.Errorf("failed to save transfer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save transfer: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transfer id %d version %d", apperr.ErrVersionConflict, transfer.ID, transfer.Version)
	}
	transfer.Version++
	return nil
}

// StalePendingTransferIDs returns up to limit ids of PENDING transfers
// created before the given cutoff, oldest first.
func (u *unitOfWork) StalePendingTransferIDs(ctx context.Context, before time.Time, limit int) ([]int64, error) {
	query := `
		SELECT id FROM transfers
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at, id
		LIMIT $3`
	rows, err := u.q.QueryContext(ctx, query, models.TransferStatusPending, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending transfers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan transfer id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stale pending transfers: %w", err)
	}
	return ids, nil
}
