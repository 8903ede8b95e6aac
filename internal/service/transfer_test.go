package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/bankrest/cardtransfer/internal/apperr"
	"github.com/bankrest/cardtransfer/internal/config"
	"github.com/bankrest/cardtransfer/internal/models"
	"github.com/bankrest/cardtransfer/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- in-memory store fake ----

type fakeStore struct {
	cards     map[int64]*models.Card
	transfers map[int64]*models.Transfer
	backups   map[int64]*models.BackupAccount // keyed by owner id
	users     map[int64]*models.User

	nextTransferID int64
	nextBackupID   int64

	// saveCardConflicts fails the first N SaveCard calls with a version
	// conflict, emulating concurrent writers.
	saveCardConflicts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cards:     map[int64]*models.Card{},
		transfers: map[int64]*models.Transfer{},
		backups:   map[int64]*models.BackupAccount{},
		users:     map[int64]*models.User{},
	}
}

func (f *fakeStore) BeginFunc(ctx context.Context, fn func(tx repository.UnitOfWork) error) error {
	return fn(f)
}

func copyCard(c *models.Card) *models.Card { cp := *c; return &cp }

func copyTransfer(t *models.Transfer) *models.Transfer {
	cp := *t
	if t.ConfirmedAt != nil {
		at := *t.ConfirmedAt
		cp.ConfirmedAt = &at
	}
	return &cp
}

func (f *fakeStore) CardByID(_ context.Context, id int64) (*models.Card, error) {
	c, ok := f.cards[id]
	if !ok {
		return nil, fmt.Errorf("%w: card", apperr.ErrNotFound)
	}
	return copyCard(c), nil
}

func (f *fakeStore) CardByIDForUpdate(ctx context.Context, id int64) (*models.Card, error) {
	return f.CardByID(ctx, id)
}

func (f *fakeStore) CardIfBalanceAtLeast(_ context.Context, id int64, amount decimal.Decimal) (*models.Card, error) {
	c, ok := f.cards[id]
	if !ok || c.Balance.LessThan(amount) {
		return nil, fmt.Errorf("%w: card", apperr.ErrNotFound)
	}
	return copyCard(c), nil
}

func (f *fakeStore) CardIDByNumber(_ context.Context, number string) (int64, error) {
	for _, c := range f.cards {
		if c.Number == number {
			return c.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: card number", apperr.ErrNotFound)
}

func (f *fakeStore) CardOwnerID(_ context.Context, id int64) (int64, error) {
	c, ok := f.cards[id]
	if !ok {
		return 0, fmt.Errorf("%w: card", apperr.ErrNotFound)
	}
	return c.OwnerID, nil
}

func (f *fakeStore) SaveCard(_ context.Context, card *models.Card) error {
	if f.saveCardConflicts > 0 {
		f.saveCardConflicts--
		return fmt.Errorf("%w: card id %d", apperr.ErrVersionConflict, card.ID)
	}
	stored, ok := f.cards[card.ID]
	if !ok || stored.Version != card.Version {
		return fmt.Errorf("%w: card id %d", apperr.ErrVersionConflict, card.ID)
	}
	card.Version++
	f.cards[card.ID] = copyCard(card)
	return nil
}

func (f *fakeStore) CreateTransfer(_ context.Context, transfer *models.Transfer) error {
	f.nextTransferID++
	transfer.ID = f.nextTransferID
	f.transfers[transfer.ID] = copyTransfer(transfer)
	return nil
}

func (f *fakeStore) TransferByID(_ context.Context, id int64) (*models.Transfer, error) {
	t, ok := f.transfers[id]
	if !ok {
		return nil, fmt.Errorf("%w: transfer", apperr.ErrNotFound)
	}
	return copyTransfer(t), nil
}

func (f *fakeStore) TransferByIDForUpdate(ctx context.Context, id int64) (*models.Transfer, error) {
	return f.TransferByID(ctx, id)
}

func (f *fakeStore) SaveTransfer(_ context.Context, transfer *models.Transfer) error {
	stored, ok := f.transfers[transfer.ID]
	if !ok || stored.Version != transfer.Version {
		return fmt.Errorf("%w: transfer id %d", apperr.ErrVersionConflict, transfer.ID)
	}
	transfer.Version++
	f.transfers[transfer.ID] = copyTransfer(transfer)
	return nil
}

func (f *fakeStore) StalePendingTransferIDs(_ context.Context, before time.Time, limit int) ([]int64, error) {
	var ids []int64
	for id, t := range f.transfers {
		if t.Status == models.TransferStatusPending && t.CreatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeStore) BackupAccountByOwnerForUpdate(_ context.Context, ownerID int64) (*models.BackupAccount, error) {
	a, ok := f.backups[ownerID]
	if !ok {
		return nil, fmt.Errorf("%w: backup account", apperr.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) CreateBackupAccount(_ context.Context, account *models.BackupAccount) error {
	f.nextBackupID++
	account.ID = f.nextBackupID
	cp := *account
	f.backups[account.OwnerID] = &cp
	return nil
}

func (f *fakeStore) SaveBackupAccount(_ context.Context, account *models.BackupAccount) error {
	cp := *account
	f.backups[account.OwnerID] = &cp
	return nil
}

func (f *fakeStore) UserByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user", apperr.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

var _ repository.Store = (*fakeStore)(nil)

// ---- enqueue fake ----

type fakeEnqueuer struct {
	msgs []*models.TransferMessage
	err  error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, msg *models.TransferMessage) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

// ---- helpers ----

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func userCtx(id int64) context.Context {
	return context.WithValue(context.Background(), "userID", fmt.Sprintf("%d", id))
}

func newService(store *fakeStore, q *fakeEnqueuer, ownCardsOnly bool) *TransferService {
	cfg := &config.Config{TransferOwnCardsOnly: ownCardsOnly, PendingBatchSize: 500}
	return NewTransferService(store, q, quietLogger(), cfg)
}

func seedCard(store *fakeStore, id, ownerID int64, balance string, status models.CardStatus) *models.Card {
	card := &models.Card{
		ID:      id,
		Type:    models.CardTypeDebit,
		Number:  fmt.Sprintf("40000000000000%02d", id),
		Status:  status,
		Balance: dec(balance),
		Hold:    dec("0"),
		OwnerID: ownerID,
	}
	store.cards[id] = card
	store.users[ownerID] = &models.User{
		ID: ownerID, Username: fmt.Sprintf("user%d", ownerID),
		Name: "Ivan", Surname: "Petrov", Email: fmt.Sprintf("user%d@example.com", ownerID),
	}
	return card
}

func seedPendingTransfer(t *testing.T, store *fakeStore, fromID, toID int64, amount string, createdAt time.Time) *models.Transfer {
	t.Helper()
	from := store.cards[fromID]
	require.NoError(t, from.AddToHold(dec(amount)))
	transfer := &models.Transfer{
		FromCardID: fromID,
		ToCardID:   toID,
		Amount:     dec(amount),
		Status:     models.TransferStatusPending,
		CreatedAt:  createdAt,
	}
	require.NoError(t, store.CreateTransfer(context.Background(), transfer))
	return transfer
}

// ---- admission ----

func TestCreateTransferRequest_HappyPath(t *testing.T) {
	store := newFakeStore()
	q := &fakeEnqueuer{}
	svc := newService(store, q, false)
	seedCard(store, 1, 10, "200.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)

	from, to := int64(1), int64(2)
	id, err := svc.CreateTransferRequest(userCtx(10), models.MoneyTransferRequest{
		FromCardID: &from, ToCardID: &to, Amount: dec("50.00"),
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	source := store.cards[1]
	assert.True(t, source.Balance.Equal(dec("150.00")), "balance: %s", source.Balance)
	assert.True(t, source.Hold.Equal(dec("50.00")), "hold: %s", source.Hold)
	assert.True(t, store.cards[2].Balance.Equal(dec("0.00")))

	transfer := store.transfers[id]
	require.NotNil(t, transfer)
	assert.Equal(t, models.TransferStatusPending, transfer.Status)
	assert.Nil(t, transfer.ConfirmedAt)

	require.Len(t, q.msgs, 1)
	assert.Equal(t, id, q.msgs[0].ID)
	assert.True(t, q.msgs[0].Amount.Equal(dec("50.00")))
}

func TestCreateTransferRequest_ResolvesCardNumbers(t *testing.T) {
	store := newFakeStore()
	q := &fakeEnqueuer{}
	svc := newService(store, q, false)
	fromCard := seedCard(store, 1, 10, "100.00", models.CardStatusActive)
	toCard := seedCard(store, 2, 20, "0.00", models.CardStatusActive)

	id, err := svc.CreateTransferRequest(userCtx(10), models.MoneyTransferRequest{
		FromCardNumber: fromCard.Number, ToCardNumber: toCard.Number, Amount: dec("10.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.transfers[id].FromCardID)
	assert.Equal(t, int64(2), store.transfers[id].ToCardID)
}

func TestCreateTransferRequest_InsufficientBalance(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 1, 10, "5.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)

	from, to := int64(1), int64(2)
	_, err := svc.CreateTransferRequest(userCtx(10), models.MoneyTransferRequest{
		FromCardID: &from, ToCardID: &to, Amount: dec("10.00"),
	})

	require.ErrorIs(t, err, apperr.ErrStateConflict)
	assert.Contains(t, err.Error(), "Insufficient balance")
	assert.True(t, store.cards[1].Hold.IsZero(), "no hold on rejection")
	assert.Empty(t, store.transfers)
}

func TestCreateTransferRequest_SameCard(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 7, 10, "100.00", models.CardStatusActive)

	from, to := int64(7), int64(7)
	_, err := svc.CreateTransferRequest(userCtx(10), models.MoneyTransferRequest{
		FromCardID: &from, ToCardID: &to, Amount: dec("10.00"),
	})

	require.ErrorIs(t, err, apperr.ErrStateConflict)
	assert.Contains(t, err.Error(), "same card")
}

func TestCreateTransferRequest_BlockedSender(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 1, 10, "100.00", models.CardStatusBlocked)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)

	from, to := int64(1), int64(2)
	_, err := svc.CreateTransferRequest(userCtx(10), models.MoneyTransferRequest{
		FromCardID: &from, ToCardID: &to, Amount: dec("10.00"),
	})

	require.ErrorIs(t, err, apperr.ErrStateConflict)
	assert.Contains(t, err.Error(), "sender's card has expired or is blocked")
}

func TestCreateTransferRequest_ExpiredRecipient(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 1, 10, "100.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusExpired)

	from, to := int64(1), int64(2)
	_, err := svc.CreateTransferRequest(userCtx(10), models.MoneyTransferRequest{
		FromCardID: &from, ToCardID: &to, Amount: dec("10.00"),
	})

	require.ErrorIs(t, err, apperr.ErrStateConflict)
	assert.Contains(t, err.Error(), "recipient's card has expired or is blocked")
}

func TestCreateTransferRequest_OwnCardsOnlyPolicy(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, true)
	seedCard(store, 1, 10, "100.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)

	from, to := int64(1), int64(2)
	_, err := svc.CreateTransferRequest(userCtx(10), models.MoneyTransferRequest{
		FromCardID: &from, ToCardID: &to, Amount: dec("10.00"),
	})

	require.ErrorIs(t, err, apperr.ErrAuthorization)
	assert.Contains(t, err.Error(), "only between your own cards")
}

func TestCreateTransferRequest_WrongOwner(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 1, 10, "100.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)

	from, to := int64(1), int64(2)
	_, err := svc.CreateTransferRequest(userCtx(99), models.MoneyTransferRequest{
		FromCardID: &from, ToCardID: &to, Amount: dec("10.00"),
	})

	require.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestCreateTransferRequest_MissingIdentifiers(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)

	to := int64(2)
	_, err := svc.CreateTransferRequest(userCtx(10), models.MoneyTransferRequest{
		ToCardID: &to, Amount: dec("10.00"),
	})

	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateTransferRequest_NonPositiveAmount(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)

	from, to := int64(1), int64(2)
	for _, amount := range []string{"0", "-5.00"} {
		_, err := svc.CreateTransferRequest(userCtx(10), models.MoneyTransferRequest{
			FromCardID: &from, ToCardID: &to, Amount: dec(amount),
		})
		require.ErrorIs(t, err, apperr.ErrValidation, "amount %s", amount)
	}
}

func TestCreateTransferRequest_EnqueueFailureLeavesDurablePending(t *testing.T) {
	store := newFakeStore()
	q := &fakeEnqueuer{err: fmt.Errorf("redis down")}
	svc := newService(store, q, false)
	seedCard(store, 1, 10, "200.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)

	from, to := int64(1), int64(2)
	id, err := svc.CreateTransferRequest(userCtx(10), models.MoneyTransferRequest{
		FromCardID: &from, ToCardID: &to, Amount: dec("50.00"),
	})

	// Admission already committed; the pending sweep is the healer.
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusPending, store.transfers[id].Status)
	assert.True(t, store.cards[1].Hold.Equal(dec("50.00")))
	assert.Empty(t, q.msgs)
}

// ---- confirmation ----

func TestConfirm_HappyPath(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 1, 10, "200.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)
	transfer := seedPendingTransfer(t, store, 1, 2, "50.00", time.Now())

	msg := models.NewTransferMessage(transfer)
	require.NoError(t, svc.Confirm(context.Background(), msg))

	source, dest := store.cards[1], store.cards[2]
	assert.True(t, source.Balance.Equal(dec("150.00")), "source balance: %s", source.Balance)
	assert.True(t, source.Hold.IsZero(), "source hold: %s", source.Hold)
	assert.True(t, dest.Balance.Equal(dec("50.00")), "dest balance: %s", dest.Balance)

	final := store.transfers[transfer.ID]
	assert.Equal(t, models.TransferStatusCompleted, final.Status)
	require.NotNil(t, final.ConfirmedAt)

	assert.Equal(t, models.TransferStatusCompleted, msg.Status)
	assert.NotNil(t, msg.ConfirmedAt)
}

func TestConfirm_AlreadyTerminalIsNoOp(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 1, 10, "150.00", models.CardStatusActive)
	seedCard(store, 2, 20, "50.00", models.CardStatusActive)
	transfer := seedPendingTransfer(t, store, 1, 2, "50.00", time.Now())
	stored := store.transfers[transfer.ID]
	stored.Status = models.TransferStatusFailed

	msg := models.NewTransferMessage(transfer)
	require.NoError(t, svc.Confirm(context.Background(), msg))

	// Redelivery of a finished transfer must not move money again.
	assert.True(t, store.cards[2].Balance.Equal(dec("50.00")))
	assert.Equal(t, models.TransferStatusFailed, store.transfers[transfer.ID].Status)
	assert.Equal(t, models.TransferStatusFailed, msg.Status)
}

func TestConfirm_RecipientLockedFails(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 1, 10, "200.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)
	transfer := seedPendingTransfer(t, store, 1, 2, "50.00", time.Now())
	// The recipient got blocked between admission and confirmation.
	store.cards[2].Status = models.CardStatusBlocked

	err := svc.Confirm(context.Background(), models.NewTransferMessage(transfer))

	require.ErrorIs(t, err, apperr.ErrStateConflict)
	assert.True(t, store.cards[2].Balance.IsZero())
	assert.Equal(t, models.TransferStatusPending, store.transfers[transfer.ID].Status)
}

func TestConfirm_OwnCardsPolicyRecheck(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, true)
	seedCard(store, 1, 10, "200.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)
	transfer := seedPendingTransfer(t, store, 1, 2, "50.00", time.Now())

	err := svc.Confirm(context.Background(), models.NewTransferMessage(transfer))

	require.ErrorIs(t, err, apperr.ErrAuthorization)
}

// ---- compensation ----

func TestCompensate_ReturnsFundsToActiveCard(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 1, 10, "200.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)
	transfer := seedPendingTransfer(t, store, 1, 2, "50.00", time.Now())

	require.NoError(t, svc.Compensate(context.Background(), models.NewTransferMessage(transfer)))

	source := store.cards[1]
	assert.True(t, source.Balance.Equal(dec("200.00")), "funds fully returned: %s", source.Balance)
	assert.True(t, source.Hold.IsZero())
	assert.Equal(t, models.TransferStatusFailed, store.transfers[transfer.ID].Status)
	assert.Empty(t, store.backups)
}

func TestCompensate_LockedCardEscrowsToBackupAccount(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 1, 10, "200.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)
	transfer := seedPendingTransfer(t, store, 1, 2, "50.00", time.Now())
	// The card got blocked while the transfer was in flight.
	store.cards[1].Status = models.CardStatusBlocked

	require.NoError(t, svc.Compensate(context.Background(), models.NewTransferMessage(transfer)))

	source := store.cards[1]
	// Escrow, not a direct credit: balance stays debited, hold is released.
	assert.True(t, source.Balance.Equal(dec("150.00")), "balance: %s", source.Balance)
	assert.True(t, source.Hold.IsZero())

	backup := store.backups[10]
	require.NotNil(t, backup)
	assert.True(t, backup.Amount.Equal(dec("50.00")))
	assert.Equal(t, models.SourceOfFundsBankCard, backup.SourceOfFunds)
	assert.Equal(t, "Ivan Petrov", backup.SenderData[models.SenderDataFullName])
	assert.Equal(t, models.TransferStatusFailed, store.transfers[transfer.ID].Status)
}

func TestCompensate_EscrowAccumulatesPerOwner(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 1, 10, "200.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)
	first := seedPendingTransfer(t, store, 1, 2, "50.00", time.Now())
	second := seedPendingTransfer(t, store, 1, 2, "30.00", time.Now())
	store.cards[1].Status = models.CardStatusExpired

	require.NoError(t, svc.Compensate(context.Background(), models.NewTransferMessage(first)))
	require.NoError(t, svc.Compensate(context.Background(), models.NewTransferMessage(second)))

	backup := store.backups[10]
	require.NotNil(t, backup)
	assert.True(t, backup.Amount.Equal(dec("80.00")), "accumulated: %s", backup.Amount)
}

func TestCompensate_NonPendingIsNoOp(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 1, 10, "200.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)
	transfer := seedPendingTransfer(t, store, 1, 2, "50.00", time.Now())

	msg := models.NewTransferMessage(transfer)
	require.NoError(t, svc.Compensate(context.Background(), msg))
	balanceAfterFirst := store.cards[1].Balance

	// A duplicate delivery must not credit the card twice.
	require.NoError(t, svc.Compensate(context.Background(), msg))
	assert.True(t, store.cards[1].Balance.Equal(balanceAfterFirst))
	assert.Equal(t, models.TransferStatusFailed, store.transfers[transfer.ID].Status)
}

// ---- pending sweep ----

func TestCancelPendingTransfers_TimesOutStaleOnly(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 1, 10, "200.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)
	yesterday := time.Now().AddDate(0, 0, -1)
	stale1 := seedPendingTransfer(t, store, 1, 2, "10.00", yesterday)
	stale2 := seedPendingTransfer(t, store, 1, 2, "20.00", yesterday)
	fresh := seedPendingTransfer(t, store, 1, 2, "30.00", time.Now())

	require.NoError(t, svc.CancelPendingTransfers(context.Background()))

	assert.Equal(t, models.TransferStatusFailed, store.transfers[stale1.ID].Status)
	assert.Equal(t, models.TransferStatusFailed, store.transfers[stale2.ID].Status)
	assert.Equal(t, models.TransferStatusPending, store.transfers[fresh.ID].Status)

	// 10 + 20 returned, 30 still held.
	source := store.cards[1]
	assert.True(t, source.Balance.Equal(dec("170.00")), "balance: %s", source.Balance)
	assert.True(t, source.Hold.Equal(dec("30.00")), "hold: %s", source.Hold)
}

func TestCancelPendingTransfers_RetriesOnVersionConflict(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 1, 10, "200.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)
	stale := seedPendingTransfer(t, store, 1, 2, "10.00", time.Now().AddDate(0, 0, -1))
	store.saveCardConflicts = 1

	require.NoError(t, svc.CancelPendingTransfers(context.Background()))

	assert.Equal(t, models.TransferStatusFailed, store.transfers[stale.ID].Status)
	assert.True(t, store.cards[1].Balance.Equal(dec("200.00")))
}

// ---- reads ----

func TestTransferByID_ParticipantsOnly(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeEnqueuer{}, false)
	seedCard(store, 1, 10, "200.00", models.CardStatusActive)
	seedCard(store, 2, 20, "0.00", models.CardStatusActive)
	transfer := seedPendingTransfer(t, store, 1, 2, "50.00", time.Now())

	got, err := svc.TransferByID(userCtx(10), transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, transfer.ID, got.ID)

	_, err = svc.TransferByID(userCtx(20), transfer.ID)
	require.NoError(t, err, "recipient may read too")

	_, err = svc.TransferByID(userCtx(99), transfer.ID)
	require.ErrorIs(t, err, apperr.ErrAuthorization)
}
