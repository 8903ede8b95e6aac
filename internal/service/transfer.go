package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bankrest/cardtransfer/internal/apperr"
	"github.com/bankrest/cardtransfer/internal/config"
	"github.com/bankrest/cardtransfer/internal/models"
	"github.com/bankrest/cardtransfer/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	cancelRetryAttempts = 3
	cancelRetryBackoff  = 100 * time.Millisecond
)

// TransferService moves funds between cards using a hold/release balance
// model. Admission runs inline with the caller's request; confirmation and
// compensation run asynchronously behind the work queue. It implements both
// Requester and Processor; wiring decides who gets which.
type TransferService struct {
	store  repository.Store
	queue  Enqueuer
	log    *logrus.Logger
	config *config.Config
}

var (
	_ Requester = (*TransferService)(nil)
	_ Processor = (*TransferService)(nil)
)

// NewTransferService initializes a new transfer service.
func NewTransferService(store repository.Store, queue Enqueuer, log *logrus.Logger, cfg *config.Config) *TransferService {
	return &TransferService{store: store, queue: queue, log: log, config: cfg}
}

// CreateTransferRequest validates and admits a new transfer: it applies a
// hold on the source card, persists a PENDING transfer in the same unit of
// work, and enqueues the message snapshot after the commit. Returns the
// transfer id.
func (s *TransferService) CreateTransferRequest(ctx context.Context, req models.MoneyTransferRequest) (int64, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		s.log.Error("Unauthorized access attempt, no current user found")
		return 0, err
	}

	if !req.Amount.IsPositive() {
		return 0, fmt.Errorf("%w: transfer amount must be positive", apperr.ErrValidation)
	}
	if (req.FromCardID == nil && req.FromCardNumber == "") ||
		(req.ToCardID == nil && req.ToCardNumber == "") {
		return 0, fmt.Errorf("%w: id or card number must be specified for both cards", apperr.ErrValidation)
	}

	fromCardID, err := s.resolveCardID(ctx, req.FromCardID, req.FromCardNumber)
	if err != nil {
		return 0, err
	}
	toCardID, err := s.resolveCardID(ctx, req.ToCardID, req.ToCardNumber)
	if err != nil {
		return 0, err
	}

	fromCardOwnerID, err := s.store.CardOwnerID(ctx, fromCardID)
	if err != nil {
		return 0, err
	}
	if fromCardOwnerID != userID {
		s.log.Errorf("Prohibited action: card owner id %d does not match current user id %d", fromCardOwnerID, userID)
		return 0, fmt.Errorf("%w: the card owner is different from the current user, owner id: %d, current user id: %d",
			apperr.ErrAuthorization, fromCardOwnerID, userID)
	}

	if fromCardID == toCardID {
		s.log.Errorf("It is not possible to transfer to the same card, card id: %d", fromCardID)
		return 0, fmt.Errorf("%w: it is not possible to transfer to the same card, card id: %d",
			apperr.ErrStateConflict, fromCardID)
	}

	fromCard, err := s.store.CardIfBalanceAtLeast(ctx, fromCardID, req.Amount)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.log.Errorf("Insufficient balance for card id: %d", fromCardID)
			return 0, fmt.Errorf("%w: Insufficient balance: the balance is too low for this operation, card id: %d",
				apperr.ErrStateConflict, fromCardID)
		}
		return 0, err
	}
	if err := checkSenderCardNotLocked(fromCard.Status, fromCard.ID); err != nil {
		s.log.Error(err)
		return 0, err
	}

	toCard, err := s.store.CardByID(ctx, toCardID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.log.Errorf("Recipient card does not exist, card id: %d", toCardID)
			return 0, fmt.Errorf("%w: the specified recipient card does not exist, card id: %d",
				apperr.ErrStateConflict, toCardID)
		}
		return 0, err
	}
	if err := s.checkOwnCardsPolicy(fromCardOwnerID, toCard.OwnerID, fromCardID, toCardID); err != nil {
		s.log.Error(err)
		return 0, err
	}
	if err := checkRecipientCardNotLocked(toCard.Status, toCard.ID); err != nil {
		s.log.Error(err)
		return 0, err
	}

	s.log.Infof("Creating transfer request from card id %d by user id %d", fromCardID, userID)

	// The hold and the PENDING row must commit together: a hold without a
	// queued record (or the reverse) would leak funds on a crash.
	var transfer *models.Transfer
	err = s.store.BeginFunc(ctx, func(tx repository.UnitOfWork) error {
		card, err := tx.CardByIDForUpdate(ctx, fromCardID)
		if err != nil {
			return err
		}
		if err := card.AddToHold(req.Amount); err != nil {
			return fmt.Errorf("%w: Insufficient balance: the balance is too low for this operation, card id: %d",
				apperr.ErrStateConflict, fromCardID)
		}
		if err := tx.SaveCard(ctx, card); err != nil {
			return err
		}

		transfer = &models.Transfer{
			FromCardID: fromCardID,
			ToCardID:   toCardID,
			Amount:     req.Amount,
			Status:     models.TransferStatusPending,
			CreatedAt:  time.Now(),
		}
		return tx.CreateTransfer(ctx, transfer)
	})
	if err != nil {
		return 0, err
	}

	// Enqueue strictly after the local commit so the worker can never see an
	// uncommitted transfer. If the push fails the PENDING row is already
	// durable and the pending-transfer sweep will compensate it.
	if err := s.queue.Enqueue(ctx, models.NewTransferMessage(transfer)); err != nil {
		s.log.Errorf("Failed to enqueue transfer %d, the pending sweep will pick it up: %v", transfer.ID, err)
	} else {
		s.log.Infof("Transfer request successfully created for transfer id: %d", transfer.ID)
	}

	return transfer.ID, nil
}

// TransferByID returns a transfer visible to the requesting user. Only a
// participant (owner of either card) may read it.
func (s *TransferService) TransferByID(ctx context.Context, id int64) (*models.Transfer, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	transfer, err := s.store.TransferByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fromOwnerID, err := s.store.CardOwnerID(ctx, transfer.FromCardID)
	if err != nil {
		return nil, err
	}
	toOwnerID, err := s.store.CardOwnerID(ctx, transfer.ToCardID)
	if err != nil {
		return nil, err
	}
	if fromOwnerID != userID && toOwnerID != userID {
		return nil, fmt.Errorf("%w: transfer %d does not involve user %d", apperr.ErrAuthorization, id, userID)
	}
	return transfer, nil
}

// Confirm finalizes a transfer in its own unit of work: it re-validates both
// cards, credits the destination and releases the source hold. A transfer
// already in a terminal state is a no-op success, which makes redelivered
// messages harmless.
func (s *TransferService) Confirm(ctx context.Context, msg *models.TransferMessage) error {
	s.log.Infof("Attempting to make a transfer from card id %d to card id %d", msg.FromCardID, msg.ToCardID)

	return s.store.BeginFunc(ctx, func(tx repository.UnitOfWork) error {
		transfer, err := tx.TransferByIDForUpdate(ctx, msg.ID)
		if err != nil {
			return err
		}
		if transfer.Status.Terminal() {
			s.log.Infof("Transfer %d already %s, skipping confirmation", transfer.ID, transfer.Status)
			msg.Status = transfer.Status
			msg.ConfirmedAt = transfer.ConfirmedAt
			return nil
		}

		fromCard, toCard, err := lockCardPair(ctx, tx, transfer.FromCardID, transfer.ToCardID)
		if err != nil {
			return err
		}

		// State may have changed since admission; re-validate everything.
		if err := checkRecipientCardNotLocked(toCard.Status, toCard.ID); err != nil {
			return err
		}
		if err := checkSenderCardNotLocked(fromCard.Status, fromCard.ID); err != nil {
			return err
		}
		if err := s.checkOwnCardsPolicy(fromCard.OwnerID, toCard.OwnerID, fromCard.ID, toCard.ID); err != nil {
			return err
		}

		amount := transfer.Amount
		toCard.Balance = toCard.Balance.Add(amount)
		if err := fromCard.ReleaseFromHold(amount); err != nil {
			return fmt.Errorf("%w: %v, transfer id: %d", apperr.ErrStateConflict, err, transfer.ID)
		}

		if err := tx.SaveCard(ctx, toCard); err != nil {
			return err
		}
		if err := tx.SaveCard(ctx, fromCard); err != nil {
			return err
		}

		now := time.Now()
		transfer.Status = models.TransferStatusCompleted
		transfer.ConfirmedAt = &now
		if err := tx.SaveTransfer(ctx, transfer); err != nil {
			return err
		}

		msg.Status = transfer.Status
		msg.ConfirmedAt = transfer.ConfirmedAt
		s.log.Infof("Transfer successfully confirmed for transfer id: %d", transfer.ID)
		return nil
	})
}

// Compensate rolls back a transfer that could not be confirmed. It is a
// no-op when the transfer is no longer PENDING, so invoking it twice for the
// same transfer never double-credits.
func (s *TransferService) Compensate(ctx context.Context, msg *models.TransferMessage) error {
	return s.cancelByID(ctx, msg.ID)
}

// CancelPendingTransfers times out abandoned PENDING transfers created before
// today, in batches. Each transfer is compensated in its own unit of work and
// retried on optimistic-version conflicts.
func (s *TransferService) CancelPendingTransfers(ctx context.Context) error {
	now := time.Now()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for {
		ids, err := s.store.StalePendingTransferIDs(ctx, cutoff, s.config.PendingBatchSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		progressed := false
		for _, id := range ids {
			if err := s.cancelWithRetry(ctx, id); err != nil {
				s.log.Errorf("Error processing transfer cancel %d: %v", id, err)
				continue
			}
			progressed = true
		}
		if len(ids) < s.config.PendingBatchSize {
			return nil
		}
		// Failed rows stay PENDING and would be re-read forever.
		if !progressed {
			return nil
		}
	}
}

func (s *TransferService) cancelWithRetry(ctx context.Context, transferID int64) error {
	var err error
	for attempt := 0; attempt < cancelRetryAttempts; attempt++ {
		err = s.cancelByID(ctx, transferID)
		if !errors.Is(err, apperr.ErrVersionConflict) {
			return err
		}
		time.Sleep(cancelRetryBackoff)
	}
	return err
}

// cancelByID reverses the hold of a PENDING transfer and marks it FAILED.
// When the source card cannot safely receive funds back, the amount is
// escrowed into the owner's backup account instead of credited; the two
// outcomes are mutually exclusive.
func (s *TransferService) cancelByID(ctx context.Context, transferID int64) error {
	return s.store.BeginFunc(ctx, func(tx repository.UnitOfWork) error {
		transfer, err := tx.TransferByIDForUpdate(ctx, transferID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil
			}
			return err
		}
		if transfer.Status != models.TransferStatusPending {
			s.log.Infof("Transfer %d already %s, skipping compensation", transfer.ID, transfer.Status)
			return nil
		}

		fromCard, err := tx.CardByIDForUpdate(ctx, transfer.FromCardID)
		if err != nil {
			return err
		}

		amount := transfer.Amount
		if fromCard.Status.LockedForTransfer() {
			if err := s.escrowToBackupAccount(ctx, tx, fromCard, amount); err != nil {
				return err
			}
		} else {
			fromCard.Balance = fromCard.Balance.Add(amount)
		}
		if err := fromCard.ReleaseFromHold(amount); err != nil {
			return fmt.Errorf("%w: %v, transfer id: %d", apperr.ErrStateConflict, err, transfer.ID)
		}
		if err := tx.SaveCard(ctx, fromCard); err != nil {
			return err
		}

		transfer.Status = models.TransferStatusFailed
		if err := tx.SaveTransfer(ctx, transfer); err != nil {
			return err
		}

		s.log.Warnf("Transfer %d cancelled, funds returned to card id %d", transfer.ID, fromCard.ID)
		return nil
	})
}

// escrowToBackupAccount parks amount on the card owner's backup account,
// creating it lazily on first use and accumulating afterwards.
func (s *TransferService) escrowToBackupAccount(ctx context.Context, tx repository.UnitOfWork, card *models.Card, amount decimal.Decimal) error {
	account, err := tx.BackupAccountByOwnerForUpdate(ctx, card.OwnerID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		owner, err := tx.UserByID(ctx, card.OwnerID)
		if err != nil {
			return err
		}
		account = &models.BackupAccount{
			OwnerID:       card.OwnerID,
			Amount:        amount,
			SourceOfFunds: models.SourceOfFundsBankCard,
			SenderData: map[string]string{
				models.SenderDataFullName:     owner.Name + " " + owner.Surname,
				models.SenderDataDocumentType: fmt.Sprintf("Card with id: %d", card.ID),
				models.SenderDataNote:         fmt.Sprintf("Funds enrolled from a cancelled transfer, card id: %d", card.ID),
			},
		}
		s.log.Warnf("Creating backup account for owner %d, card id %d is locked", card.OwnerID, card.ID)
		return tx.CreateBackupAccount(ctx, account)
	}

	account.Amount = account.Amount.Add(amount)
	return tx.SaveBackupAccount(ctx, account)
}

func (s *TransferService) resolveCardID(ctx context.Context, id *int64, number string) (int64, error) {
	if id != nil {
		return *id, nil
	}
	cardID, err := s.store.CardIDByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return 0, fmt.Errorf("%w: no card matches the specified card number", apperr.ErrValidation)
		}
		return 0, err
	}
	return cardID, nil
}

func (s *TransferService) checkOwnCardsPolicy(fromOwnerID, toOwnerID, fromCardID, toCardID int64) error {
	if s.config.TransferOwnCardsOnly && fromOwnerID != toOwnerID {
		return fmt.Errorf("%w: transfers are allowed only between your own cards, from card id: %d, to card id: %d",
			apperr.ErrAuthorization, fromCardID, toCardID)
	}
	return nil
}

func checkSenderCardNotLocked(status models.CardStatus, cardID int64) error {
	if status.LockedForTransfer() {
		return fmt.Errorf("%w: the sender's card has expired or is blocked, card id: %d", apperr.ErrStateConflict, cardID)
	}
	return nil
}

func checkRecipientCardNotLocked(status models.CardStatus, cardID int64) error {
	if status.LockedForTransfer() {
		return fmt.Errorf("%w: the recipient's card has expired or is blocked, card id: %d", apperr.ErrStateConflict, cardID)
	}
	return nil
}

// lockCardPair locks both cards in ascending id order so two concurrent
// transfers touching the same pair cannot deadlock.
func lockCardPair(ctx context.Context, tx repository.UnitOfWork, fromID, toID int64) (fromCard, toCard *models.Card, err error) {
	firstID, secondID := fromID, toID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}

	first, err := tx.CardByIDForUpdate(ctx, firstID)
	if err != nil {
		return nil, nil, err
	}
	second, err := tx.CardByIDForUpdate(ctx, secondID)
	if err != nil {
		return nil, nil, err
	}

	if first.ID == fromID {
		return first, second, nil
	}
	return second, first, nil
}

// currentUserID extracts the authenticated principal placed into the request
// context by the auth middleware.
func currentUserID(ctx context.Context) (int64, error) {
	userIDStr, ok := ctx.Value("userID").(string)
	if !ok || userIDStr == "" {
		return 0, fmt.Errorf("%w: unauthorized access", apperr.ErrAuthorization)
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid user id in context", apperr.ErrAuthorization)
	}
	return userID, nil
}
