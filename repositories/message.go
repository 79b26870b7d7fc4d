package repositories

import (
	"chat-relay/domain"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

const messagePrefix = "msg:"

// MessageRepository is the Badger backed append-only message log.
type MessageRepository struct {
	mu            sync.Mutex
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	maxTextLength int
	lastID        uint64
	clock         monotonicClock
}

// DiskMessage is the CBOR value stored under each message key.
type DiskMessage struct {
	ID       uint64  `cbor:"1,keyasint"`
	Sender   string  `cbor:"2,keyasint"`
	Receiver *string `cbor:"3,keyasint,omitempty"`
	Text     string  `cbor:"4,keyasint"`
	At       int64   `cbor:"5,keyasint"`
}

// NewMessageRepository opens the log on top of db and recovers the last
// assigned id so numbering continues after a restart.
func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int, maxTextLength int) (*MessageRepository, error) {
	m := &MessageRepository{
		db:            db,
		log:           log,
		limitMessages: limitMessages,
		maxTextLength: maxTextLength,
		clock:         monotonicClock{now: time.Now},
	}
	last, found, err := m.loadLast()
	if err != nil {
		return nil, fmt.Errorf("recovering last message: %w", err)
	}
	if found {
		m.lastID = last.ID
		m.clock.commit(time.Unix(0, last.At).UTC())
		log.Debug("Message log recovered", "last_id", last.ID)
	}
	return m, nil
}

// messageKey formats "msg:{id padded to 20 digits}" so the lexicographical
// order of keys is the numerical order of ids.
func messageKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix, id))
}

// Append assigns the next id and timestamp and persists the message.
// Both are assigned inside the same critical section as the write,
// which gives a single total order across concurrent writers.
func (m *MessageRepository) Append(ctx context.Context, sender string, receiver *string, text string) (domain.Message, error) {
	if err := validateAppend(sender, receiver, text, m.maxTextLength); err != nil {
		return domain.Message{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}

	at := m.clock.next()
	diskMessage := DiskMessage{
		ID:       m.lastID + 1,
		Sender:   sender,
		Receiver: receiver,
		Text:     text,
		At:       at.UnixNano(),
	}
	value, err := cbor.Marshal(diskMessage)
	if err != nil {
		return domain.Message{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(diskMessage.ID), value)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("storing message %d: %w", diskMessage.ID, err)
	}

	m.lastID = diskMessage.ID
	m.clock.commit(at)
	return toMessage(diskMessage), nil
}

// ListFor scans the log forward, strictly after sinceID, and keeps the
// messages identity may read. It stops once limitMessages are collected.
func (m *MessageRepository) ListFor(ctx context.Context, identity string, sinceID *uint64) ([]domain.Message, error) {
	if noneAfter(sinceID, math.MaxUint64) {
		return []domain.Message{}, nil
	}
	var start uint64 = 1
	if sinceID != nil {
		start = *sinceID + 1
	}

	messages := []domain.Message{}
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(messagePrefix)
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(messageKey(start)); it.ValidForPrefix(options.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			var diskMessage DiskMessage
			err := it.Item().Value(func(value []byte) error {
				return cbor.Unmarshal(value, &diskMessage)
			})
			if err != nil {
				return err
			}
			message := toMessage(diskMessage)
			if message.VisibleTo(identity) {
				messages = append(messages, message)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (m *MessageRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(messagePrefix)
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

func (m *MessageRepository) loadLast() (DiskMessage, bool, error) {
	var last DiskMessage
	found := false
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = []byte(messagePrefix)
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past every "msg:" key, reverse iteration lands on the highest one
		it.Seek(append([]byte(messagePrefix), 0xFF))
		if !it.ValidForPrefix(options.Prefix) {
			return nil
		}
		found = true
		return it.Item().Value(func(value []byte) error {
			return cbor.Unmarshal(value, &last)
		})
	})
	return last, found, err
}

func toMessage(diskMessage DiskMessage) domain.Message {
	return domain.Message{
		ID:         diskMessage.ID,
		SenderID:   diskMessage.Sender,
		ReceiverID: diskMessage.Receiver,
		Text:       diskMessage.Text,
		CreatedAt:  time.Unix(0, diskMessage.At).UTC(),
	}
}
