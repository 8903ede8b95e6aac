package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bankrest/cardtransfer/internal/apperr"
	"github.com/bankrest/cardtransfer/internal/models"
)

// BackupAccountByOwnerForUpdate retrieves the owner's escrow account under an
// exclusive row lock.
func (u *unitOfWork) BackupAccountByOwnerForUpdate(ctx context.Context, ownerID int64) (*models.BackupAccount, error) {
	query := `
		SELECT id, owner_id, amount, source_of_funds, sender_data
		FROM backup_accounts
		WHERE owner_id = $1
		FOR UPDATE`
	account := &models.BackupAccount{}
	var senderData []byte
	err := u.q.QueryRowContext(ctx, query, ownerID).
		Scan(&account.ID, &account.OwnerID, &account.Amount, &account.SourceOfFunds, &senderData)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: backup account for owner %d", apperr.ErrNotFound, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find backup account: %w", err)
	}
	if len(senderData) > 0 {
		if err := json.Unmarshal(senderData, &account.SenderData); err != nil {
			return nil, fmt.Errorf("failed to decode sender data: %w", err)
		}
	}
	return account, nil
}

// CreateBackupAccount inserts a new escrow account and fills in its id.
func (u *unitOfWork) CreateBackupAccount(ctx context.Context, account *models.BackupAccount) error {
	senderData, err := json.Marshal(account.SenderData)
	if err != nil {
		return fmt.Errorf("failed to encode sender data: %w", err)
	}
	query := `
		INSERT INTO backup_accounts (owner_id, amount, source_of_funds, sender_data)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	err = u.q.QueryRowContext(ctx, query,
		account.OwnerID, account.Amount, account.SourceOfFunds, senderData).Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("failed to create backup account: %w", err)
	}
	return nil
}

// SaveBackupAccount persists the accumulated amount and sender data.
func (u *unitOfWork) SaveBackupAccount(ctx context.Context, account *models.BackupAccount) error {
	senderData, err := json.Marshal(account.SenderData)
	if err != nil {
		return fmt.Errorf("failed to encode sender data: %w", err)
	}
	query := `
		UPDATE backup_accounts
		SET amount = $1, source_of_funds = $2, sender_data = $3
		WHERE id = $4`
	if _, err := u.q.ExecContext(ctx, query,
		account.Amount, account.SourceOfFunds, senderData, account.ID); err != nil {
		return fmt.Errorf("failed to save backup account: %w", err)
	}
	return nil
}
