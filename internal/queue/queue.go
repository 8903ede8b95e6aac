// Package queue implements a durable work queue over two Redis lists per
// logical queue: "<name>" holds pending messages and "<name>:processing"
// holds in-flight ones. The atomic list move at pop time is the reliability
// primitive: a message is never absent from both lists and the move itself
// never duplicates it. Delivery is at-least-once; consumers must tolerate
// redelivery.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bankrest/cardtransfer/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	processingSuffix = ":processing"
	leaseSuffix      = ":leases"
)

// Queue moves transfer messages through a named pair of Redis lists.
type Queue struct {
	rdb        *redis.Client
	name       string
	processing string
	leases     string
	leaseTTL   time.Duration
	log        *logrus.Logger
}

// New binds a queue to its Redis lists. leaseTTL bounds how long a popped
// message is considered legitimately in flight before the stuck sweep may
// requeue it.
func New(rdb *redis.Client, name string, leaseTTL time.Duration, log *logrus.Logger) *Queue {
	return &Queue{
		rdb:        rdb,
		name:       name,
		processing: name + processingSuffix,
		leases:     name + leaseSuffix,
		leaseTTL:   leaseTTL,
		log:        log,
	}
}

// Delivery couples a decoded message with the exact payload occupying the
// processing list; the payload is what Ack removes.
type Delivery struct {
	Message *models.TransferMessage
	Payload string
}

// Enqueue pushes a message onto the pending list.
func (q *Queue) Enqueue(ctx context.Context, msg *models.TransferMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal transfer message: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", q.name, err)
	}
	return nil
}

// Pop atomically moves the oldest pending message into the processing list
// and records a lease for it. Returns nil when the queue is empty.
func (q *Queue) Pop(ctx context.Context) (*Delivery, error) {
	payload, err := q.rdb.LMove(ctx, q.name, q.processing, "RIGHT", "LEFT").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from queue %s: %w", q.name, err)
	}

	msg := &models.TransferMessage{}
	if err := json.Unmarshal([]byte(payload), msg); err != nil {
		// Undecodable payloads would wedge the processing list forever;
		// drop them instead.
		q.log.Errorf("Dropping malformed message from %s: %v", q.processing, err)
		q.rdb.LRem(ctx, q.processing, 1, payload)
		return nil, fmt.Errorf("failed to unmarshal transfer message: %w", err)
	}

	lease := formatLease(uuid.NewString(), time.Now().Add(q.leaseTTL))
	if err := q.rdb.HSet(ctx, q.leases, leaseField(msg.ID), lease).Err(); err != nil {
		// The message stays in the processing list without a lease and will
		// be requeued by the next sweep.
		q.log.Warnf("Failed to record lease for transfer %d: %v", msg.ID, err)
	}

	return &Delivery{Message: msg, Payload: payload}, nil
}

// Ack removes a handled delivery from the processing list and drops its lease.
func (q *Queue) Ack(ctx context.Context, d *Delivery) error {
	if err := q.rdb.LRem(ctx, q.processing, 1, d.Payload).Err(); err != nil {
		return fmt.Errorf("failed to ack message on %s: %w", q.processing, err)
	}
	if err := q.rdb.HDel(ctx, q.leases, leaseField(d.Message.ID)).Err(); err != nil {
		q.log.Warnf("Failed to drop lease for transfer %d: %v", d.Message.ID, err)
	}
	return nil
}

// RequeueExpired returns processing-list entries whose lease is missing or
// expired to the pending list. Entries inside their lease window are still
// legitimately in flight and are left alone.
func (q *Queue) RequeueExpired(ctx context.Context, now time.Time) (int, error) {
	payloads, err := q.rdb.LRange(ctx, q.processing, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read processing list %s: %w", q.processing, err)
	}

	requeued := 0
	for _, payload := range payloads {
		msg := &models.TransferMessage{}
		if err := json.Unmarshal([]byte(payload), msg); err != nil {
			q.log.Errorf("Dropping malformed message from %s: %v", q.processing, err)
			q.rdb.LRem(ctx, q.processing, 1, payload)
			continue
		}

		lease, err := q.rdb.HGet(ctx, q.leases, leaseField(msg.ID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return requeued, fmt.Errorf("failed to read lease for transfer %d: %w", msg.ID, err)
		}
		if err == nil {
			if deadline, ok := parseLeaseDeadline(lease); ok && now.Before(deadline) {
				continue
			}
		}

		if err := q.rdb.LRem(ctx, q.processing, 1, payload).Err(); err != nil {
			return requeued, fmt.Errorf("failed to remove stuck message: %w", err)
		}
		if err := q.rdb.LPush(ctx, q.name, payload).Err(); err != nil {
			return requeued, fmt.Errorf("failed to requeue stuck message: %w", err)
		}
		q.rdb.HDel(ctx, q.leases, leaseField(msg.ID))
		q.log.Warnf("Requeued stuck message for transfer %d back to %s", msg.ID, q.name)
		requeued++
	}
	return requeued, nil
}

// PopTail pops a message without parking it in the processing list. Meant for
// queues whose messages are safe to lose, such as notification fan-out.
func (q *Queue) PopTail(ctx context.Context) (*models.TransferMessage, error) {
	payload, err := q.rdb.RPop(ctx, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from queue %s: %w", q.name, err)
	}
	msg := &models.TransferMessage{}
	if err := json.Unmarshal([]byte(payload), msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transfer message: %w", err)
	}
	return msg, nil
}

func leaseField(transferID int64) string {
	return strconv.FormatInt(transferID, 10)
}

func formatLease(token string, deadline time.Time) string {
	return token + "|" + strconv.FormatInt(deadline.UnixMilli(), 10)
}

func parseLeaseDeadline(lease string) (time.Time, bool) {
	_, millis, ok := strings.Cut(lease, "|")
	if !ok {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(n), true
}
