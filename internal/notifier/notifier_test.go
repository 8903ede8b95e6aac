package notifier

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/bankrest/cardtransfer/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	msg *models.TransferMessage
	err error
}

func (f *fakeSource) PopTail(_ context.Context) (*models.TransferMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	msg := f.msg
	f.msg = nil
	return msg, nil
}

type fakeDirectory struct {
	owners map[int64]int64
	users  map[int64]*models.User
}

func (f *fakeDirectory) CardOwnerID(_ context.Context, id int64) (int64, error) {
	ownerID, ok := f.owners[id]
	if !ok {
		return 0, fmt.Errorf("card %d not found", id)
	}
	return ownerID, nil
}

func (f *fakeDirectory) UserByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d not found", id)
	}
	return u, nil
}

type fakeSender struct {
	to       []string
	username []string
	err      error
}

func (f *fakeSender) SendTransferConfirmation(to, username string, _ *models.TransferMessage) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.username = append(f.username, username)
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func confirmedMessage() *models.TransferMessage {
	confirmed := time.Now()
	return &models.TransferMessage{
		ID:          42,
		FromCardID:  1,
		ToCardID:    2,
		Amount:      decimal.RequireFromString("50.00"),
		CreatedAt:   confirmed.Add(-time.Minute),
		ConfirmedAt: &confirmed,
		Status:      models.TransferStatusCompleted,
	}
}

func TestProcess_SendsEmailToSender(t *testing.T) {
	source := &fakeSource{msg: confirmedMessage()}
	directory := &fakeDirectory{
		owners: map[int64]int64{1: 10},
		users:  map[int64]*models.User{10: {ID: 10, Username: "ivan", Email: "ivan@example.com"}},
	}
	sender := &fakeSender{}

	NewNotifier(source, directory, sender, quietLogger()).Process(context.Background())

	require.Len(t, sender.to, 1)
	assert.Equal(t, "ivan@example.com", sender.to[0])
	assert.Equal(t, "ivan", sender.username[0])
}

func TestProcess_EmptyQueueIsNoOp(t *testing.T) {
	sender := &fakeSender{}

	NewNotifier(&fakeSource{}, &fakeDirectory{}, sender, quietLogger()).Process(context.Background())

	assert.Empty(t, sender.to)
}

func TestProcess_UnknownOwnerDropsMessage(t *testing.T) {
	source := &fakeSource{msg: confirmedMessage()}
	sender := &fakeSender{}

	NewNotifier(source, &fakeDirectory{owners: map[int64]int64{}}, sender, quietLogger()).Process(context.Background())

	assert.Empty(t, sender.to)
}
