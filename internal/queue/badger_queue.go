package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// RetryPolicy is the explicit per-queue retry configuration, passed at
// construction time rather than hidden in transport defaults.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffKind string // "exponential" is the only kind implemented
}

// Delay returns the redelivery delay before the given attempt (1-based):
// base * 2^(attempt-1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BackoffBase * time.Duration(1<<(attempt-1))
}

// Options configure a single named queue.
type Options struct {
	VisibilityTimeout  time.Duration
	Retry              RetryPolicy
	CompletedRetention int
	FailedRetention    int
}

// storedMessage is the internal structure persisted in Badger.
type storedMessage struct {
	ID           string            `json:"id"`
	Envelope     models.JobMessage `json:"envelope"`
	EnqueuedAt   time.Time         `json:"enqueued_at"`
	VisibleAt    time.Time         `json:"visible_at"`
	Priority     int               `json:"priority"`
	ReceiveCount int               `json:"receive_count"`
	LastError    string            `json:"last_error,omitempty"`
}

// BadgerQueue implements a persistent named queue over BadgerDB with a
// visibility-timeout lease: a received message is invisible to other workers
// until acknowledged, nacked, or its lease expires. Lease expiry returns the
// message to the queue and counts as a new attempt, which is how stalled jobs
// (worker crashed mid-processing) get redelivered.
//
// Key layout:
//
//	queue:{name}:msg:{id}                     -> message JSON
//	queue:{name}:index:{prio}:{visibleAt}:{id} -> empty (ordering index)
//	queue:{name}:done:{finishedAt}:{id}       -> message JSON (bounded set)
//	queue:{name}:dead:{finishedAt}:{id}       -> message JSON (bounded set)
//
// prio is 999-priority zero-padded so higher priorities sort first; within a
// priority, messages order by visibility timestamp (enqueue order for fresh
// messages).
type BadgerQueue struct {
	db                 *badger.DB
	name               models.QueueName
	visibilityTimeout  time.Duration
	retry              RetryPolicy
	completedRetention int
	failedRetention    int
	logger             arbor.ILogger
}

// NewBadgerQueue creates a Badger-backed queue.
func NewBadgerQueue(db *badger.DB, name models.QueueName, opts Options, logger arbor.ILogger) (*BadgerQueue, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if name == "" {
		return nil, errors.New("queue name is required")
	}
	if opts.VisibilityTimeout <= 0 {
		opts.VisibilityTimeout = 2 * time.Minute
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 3
	}
	if opts.Retry.BackoffBase <= 0 {
		opts.Retry.BackoffBase = time.Second
	}
	if opts.CompletedRetention <= 0 {
		opts.CompletedRetention = 100
	}
	if opts.FailedRetention <= 0 {
		opts.FailedRetention = 50
	}

	return &BadgerQueue{
		db:                 db,
		name:               name,
		visibilityTimeout:  opts.VisibilityTimeout,
		retry:              opts.Retry,
		completedRetention: opts.CompletedRetention,
		failedRetention:    opts.FailedRetention,
		logger:             logger,
	}, nil
}

// Name returns the queue name.
func (q *BadgerQueue) Name() models.QueueName {
	return q.name
}

// Enqueue adds a message to the queue and returns its job ID. The write goes
// straight to the durable transport; a transport failure surfaces as an error
// so the caller can fall back to inline execution.
func (q *BadgerQueue) Enqueue(ctx context.Context, msg models.JobMessage) (string, error) {
	if msg.ID == "" {
		msg.ID = "job_" + uuid.New().String()
	}
	if msg.Queue == "" {
		msg.Queue = q.name
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	sMsg := storedMessage{
		ID:         msg.ID,
		Envelope:   msg,
		EnqueuedAt: msg.CreatedAt,
		VisibleAt:  time.Now(), // Immediately visible
		Priority:   msg.Priority,
	}

	data, err := json.Marshal(sMsg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal queue message: %w", err)
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(q.msgKey(sMsg.ID), data); err != nil {
			return err
		}
		return txn.Set(q.indexKey(sMsg.Priority, sMsg.VisibleAt, sMsg.ID), []byte{})
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue on %s: %w", q.name, err)
	}

	q.logger.Debug().
		Str("queue", string(q.name)).
		Str("job_id", msg.ID).
		Int("priority", msg.Priority).
		Msg("Message enqueued")

	return msg.ID, nil
}

// Receive pulls the next visible message in priority order. The returned
// delivery carries ack/nack functions; a message whose lease expires without
// either is redelivered as a new attempt.
func (q *BadgerQueue) Receive(ctx context.Context) (*interfaces.Delivery, error) {
	var sMsg storedMessage

	err := q.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", q.name))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		var oldIndexKey []byte
		found := false

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := q.parseIndexKey(key)
			if err != nil {
				continue // Skip invalid keys
			}

			// Keys sort by priority bucket first, so a future timestamp only
			// rules out the rest of its own bucket; keep scanning.
			if ts.After(now) {
				continue
			}

			item, err := txn.Get(q.msgKey(id))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					// Orphaned index entry, clean it up
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			var cand storedMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &cand)
			}); err != nil {
				return err
			}

			// A message at the attempt cap whose lease expired is a stall that
			// has exhausted its retries: move it to the failed set.
			if cand.ReceiveCount >= q.retry.MaxAttempts {
				if cand.LastError == "" {
					cand.LastError = "lease expired after final attempt"
				}
				if err := q.moveToDead(txn, key, &cand); err != nil {
					return err
				}
				continue
			}

			sMsg = cand
			found = true
			oldIndexKey = key
			break
		}

		if !found {
			return interfaces.ErrNoMessage
		}

		// Claim: count the attempt and lease the message
		sMsg.ReceiveCount++
		sMsg.VisibleAt = time.Now().Add(q.visibilityTimeout)
		sMsg.Envelope.Attempt = sMsg.ReceiveCount

		newData, err := json.Marshal(sMsg)
		if err != nil {
			return err
		}
		if err := txn.Set(q.msgKey(sMsg.ID), newData); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(q.indexKey(sMsg.Priority, sMsg.VisibleAt, sMsg.ID), []byte{})
	})

	if err != nil {
		if errors.Is(err, interfaces.ErrNoMessage) {
			return nil, interfaces.ErrNoMessage
		}
		return nil, fmt.Errorf("failed to receive from %s: %w", q.name, err)
	}

	envelope := sMsg.Envelope
	msgID := sMsg.ID

	return &interfaces.Delivery{
		Message: &envelope,
		Ack:     func() error { return q.ack(msgID) },
		Nack:    func(reason string) error { return q.nack(msgID, reason) },
	}, nil
}

// ack moves a processed message to the bounded completed set.
func (q *BadgerQueue) ack(msgID string) error {
	return q.db.Update(func(txn *badger.Txn) error {
		sMsg, err := q.load(txn, msgID)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil // Already settled
			}
			return err
		}

		if err := q.deleteLive(txn, sMsg); err != nil {
			return err
		}

		data, err := json.Marshal(sMsg)
		if err != nil {
			return err
		}
		if err := txn.Set(q.retainKey("done", sMsg.ID), data); err != nil {
			return err
		}
		return q.pruneSet(txn, "done", q.completedRetention)
	})
}

// nack applies the retry policy: exponential backoff while attempts remain,
// otherwise the message moves to the bounded failed set.
func (q *BadgerQueue) nack(msgID string, reason string) error {
	return q.db.Update(func(txn *badger.Txn) error {
		sMsg, err := q.load(txn, msgID)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil // Already settled
			}
			return err
		}

		sMsg.LastError = reason

		if sMsg.ReceiveCount >= q.retry.MaxAttempts {
			if err := q.deleteLive(txn, sMsg); err != nil {
				return err
			}
			data, err := json.Marshal(sMsg)
			if err != nil {
				return err
			}
			q.logger.Warn().
				Str("queue", string(q.name)).
				Str("job_id", sMsg.ID).
				Int("attempts", sMsg.ReceiveCount).
				Str("error", reason).
				Msg("Retries exhausted, moving message to failed set")
			if err := txn.Set(q.retainKey("dead", sMsg.ID), data); err != nil {
				return err
			}
			return q.pruneSet(txn, "dead", q.failedRetention)
		}

		delay := q.retry.Delay(sMsg.ReceiveCount)
		oldIndexKey := q.indexKey(sMsg.Priority, sMsg.VisibleAt, sMsg.ID)
		sMsg.VisibleAt = time.Now().Add(delay)

		q.logger.Debug().
			Str("queue", string(q.name)).
			Str("job_id", sMsg.ID).
			Int("attempt", sMsg.ReceiveCount).
			Dur("backoff", delay).
			Msg("Message scheduled for retry")

		data, err := json.Marshal(sMsg)
		if err != nil {
			return err
		}
		if err := txn.Set(q.msgKey(sMsg.ID), data); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(q.indexKey(sMsg.Priority, sMsg.VisibleAt, sMsg.ID), []byte{})
	})
}

// Extend pushes out the lease of an in-flight message. Long-running handlers
// call this to prevent redelivery.
func (q *BadgerQueue) Extend(ctx context.Context, messageID string, d time.Duration) error {
	return q.db.Update(func(txn *badger.Txn) error {
		sMsg, err := q.load(txn, messageID)
		if err != nil {
			return err
		}

		oldIndexKey := q.indexKey(sMsg.Priority, sMsg.VisibleAt, sMsg.ID)
		sMsg.VisibleAt = time.Now().Add(d)

		data, err := json.Marshal(sMsg)
		if err != nil {
			return err
		}
		if err := txn.Set(q.msgKey(sMsg.ID), data); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(q.indexKey(sMsg.Priority, sMsg.VisibleAt, sMsg.ID), []byte{})
	})
}

// Stats returns depth counters for the queue.
func (q *BadgerQueue) Stats(ctx context.Context) (interfaces.QueueStats, error) {
	stats := interfaces.QueueStats{Queue: q.name}

	err := q.db.View(func(txn *badger.Txn) error {
		now := time.Now()
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		indexPrefix := []byte(fmt.Sprintf("queue:%s:index:", q.name))
		for it.Seek(indexPrefix); it.ValidForPrefix(indexPrefix); it.Next() {
			ts, _, err := q.parseIndexKey(it.Item().Key())
			if err != nil {
				continue
			}
			if ts.After(now) {
				// Leased or awaiting backoff
				stats.InFlight++
			} else {
				stats.Ready++
			}
		}

		stats.Completed = q.countPrefix(it, fmt.Sprintf("queue:%s:done:", q.name))
		stats.Failed = q.countPrefix(it, fmt.Sprintf("queue:%s:dead:", q.name))
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("failed to read stats for %s: %w", q.name, err)
	}

	return stats, nil
}

// Sweep evicts completed/failed entries beyond the retention caps. Retention
// is observability only; the result store is the system of record.
func (q *BadgerQueue) Sweep(ctx context.Context) error {
	return q.db.Update(func(txn *badger.Txn) error {
		if err := q.pruneSet(txn, "done", q.completedRetention); err != nil {
			return err
		}
		return q.pruneSet(txn, "dead", q.failedRetention)
	})
}

// Helpers

func (q *BadgerQueue) load(txn *badger.Txn, msgID string) (*storedMessage, error) {
	item, err := txn.Get(q.msgKey(msgID))
	if err != nil {
		return nil, err
	}
	var sMsg storedMessage
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &sMsg)
	}); err != nil {
		return nil, err
	}
	return &sMsg, nil
}

// deleteLive removes a message's data and index entry.
func (q *BadgerQueue) deleteLive(txn *badger.Txn, sMsg *storedMessage) error {
	idxKey := q.indexKey(sMsg.Priority, sMsg.VisibleAt, sMsg.ID)
	if err := txn.Delete(idxKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return txn.Delete(q.msgKey(sMsg.ID))
}

// moveToDead relocates an exhausted message (index key known) to the failed set.
func (q *BadgerQueue) moveToDead(txn *badger.Txn, indexKey []byte, sMsg *storedMessage) error {
	if err := txn.Delete(indexKey); err != nil {
		return err
	}
	if err := txn.Delete(q.msgKey(sMsg.ID)); err != nil {
		return err
	}
	data, err := json.Marshal(sMsg)
	if err != nil {
		return err
	}
	if err := txn.Set(q.retainKey("dead", sMsg.ID), data); err != nil {
		return err
	}
	return q.pruneSet(txn, "dead", q.failedRetention)
}

// pruneSet deletes the oldest entries of a retention set beyond cap. Keys are
// timestamp-ordered so iteration order is oldest first.
func (q *BadgerQueue) pruneSet(txn *badger.Txn, set string, limit int) error {
	prefix := []byte(fmt.Sprintf("queue:%s:%s:", q.name, set))
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}

	for i := 0; i < len(keys)-limit; i++ {
		if err := txn.Delete(keys[i]); err != nil {
			return err
		}
	}
	return nil
}

func (q *BadgerQueue) countPrefix(it *badger.Iterator, prefix string) int {
	count := 0
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		count++
	}
	return count
}

func (q *BadgerQueue) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", q.name, id))
}

// indexKey builds the ordering key. Priority is inverted (999-p) and zero
// padded so string sorting visits higher priorities first; the zero-padded
// nanosecond timestamp breaks ties by enqueue/visibility order.
func (q *BadgerQueue) indexKey(priority int, visibleAt time.Time, id string) []byte {
	if priority < 0 {
		priority = 0
	}
	if priority > 999 {
		priority = 999
	}
	return []byte(fmt.Sprintf("queue:%s:index:%03d:%020d:%s", q.name, 999-priority, visibleAt.UnixNano(), id))
}

// retainKey builds a completed/failed set key ordered by settlement time.
func (q *BadgerQueue) retainKey(set, id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:%s:%020d:%s", q.name, set, time.Now().UnixNano(), id))
}

func (q *BadgerQueue) parseIndexKey(key []byte) (time.Time, string, error) {
	prefixStr := fmt.Sprintf("queue:%s:index:", q.name)
	if len(key) <= len(prefixStr) {
		return time.Time{}, "", fmt.Errorf("invalid key length")
	}

	// Suffix is "{3-digit-prio}:{20-digit-ts}:{id}"
	suffix := string(key[len(prefixStr):])
	parts := strings.SplitN(suffix, ":", 3)
	if len(parts) != 3 {
		return time.Time{}, "", fmt.Errorf("invalid index key: %s", key)
	}

	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts), parts[2], nil
}
