package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bankrest/cardtransfer/internal/models"
	"github.com/shopspring/decimal"
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// every store operation can run either on the pool or inside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UnitOfWork is the set of store operations available to the service layer.
// Methods suffixed ForUpdate take an exclusive row lock and are only
// meaningful inside a transaction started with Store.BeginFunc.
type UnitOfWork interface {
	CardByID(ctx context.Context, id int64) (*models.Card, error)
	CardByIDForUpdate(ctx context.Context, id int64) (*models.Card, error)
	CardIfBalanceAtLeast(ctx context.Context, id int64, amount decimal.Decimal) (*models.Card, error)
	CardIDByNumber(ctx context.Context, number string) (int64, error)
	CardOwnerID(ctx context.Context, id int64) (int64, error)
	SaveCard(ctx context.Context, card *models.Card) error

	CreateTransfer(ctx context.Context, transfer *models.Transfer) error
	TransferByID(ctx context.Context, id int64) (*models.Transfer, error)
	TransferByIDForUpdate(ctx context.Context, id int64) (*models.Transfer, error)
	SaveTransfer(ctx context.Context, transfer *models.Transfer) error
	StalePendingTransferIDs(ctx context.Context, before time.Time, limit int) ([]int64, error)

	BackupAccountByOwnerForUpdate(ctx context.Context, ownerID int64) (*models.BackupAccount, error)
	CreateBackupAccount(ctx context.Context, account *models.BackupAccount) error
	SaveBackupAccount(ctx context.Context, account *models.BackupAccount) error

	UserByID(ctx context.Context, id int64) (*models.User, error)
}

// Store is a UnitOfWork that can also open transactional scopes.
type Store interface {
	UnitOfWork
	BeginFunc(ctx context.Context, fn func(tx UnitOfWork) error) error
}

// Repository provides database operations for the transfer engine.
// Calls made directly on it run in auto-commit mode.
type Repository struct {
	unitOfWork
	db *sql.DB
}

var _ Store = (*Repository)(nil)

// NewRepository initializes a new repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{unitOfWork: unitOfWork{q: db}, db: db}
}

// BeginFunc runs fn inside a single transaction. The transaction is committed
// when fn returns nil and rolled back otherwise; fn must not retain the
// UnitOfWork beyond its own scope.
func (r *Repository) BeginFunc(ctx context.Context, fn func(tx UnitOfWork) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&unitOfWork{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type unitOfWork struct {
	q Querier
}
