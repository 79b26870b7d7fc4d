package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

const testMaxTextLength = 64

func openBadger(t *testing.T, dir string) *badger.DB {
	t.Helper()
	// Reduced to 16 Mo for testing
	db, err := badger.Open(badger.DefaultOptions(dir).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	return db
}

func newBadgerRepository(t *testing.T, limit *int) contract.IMessageRepository {
	t.Helper()
	db := openBadger(t, t.TempDir())
	t.Cleanup(func() { _ = db.Close() })
	repository, err := NewMessageRepository(db, slog.Default(), limit, testMaxTextLength)
	require.NoError(t, err)
	return repository
}

func TestBadger_MessageLog(t *testing.T) {
	runMessageLogSuite(t, newBadgerRepository)
}

func TestBadger_RecoversSequenceAfterRestart(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	db := openBadger(t, dir)
	repository, err := NewMessageRepository(db, slog.Default(), nil, testMaxTextLength)
	req.NoError(err)
	first, err := repository.Append(ctx, "alice", nil, "before restart")
	req.NoError(err)
	req.NoError(db.Close())

	// When the store is reopened
	db = openBadger(t, dir)
	defer db.Close()
	repository, err = NewMessageRepository(db, slog.Default(), nil, testMaxTextLength)
	req.NoError(err)

	// Then numbering and time keep going forward
	second, err := repository.Append(ctx, "bob", nil, "after restart")
	req.NoError(err)
	req.Equal(first.ID+1, second.ID)
	req.False(second.CreatedAt.Before(first.CreatedAt))
}

// runMessageLogSuite checks the behaviour every message store must share.
func runMessageLogSuite(t *testing.T, newRepository func(t *testing.T, limit *int) contract.IMessageRepository) {
	t.Run("should assign increasing ids and timestamps", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		repository := newRepository(t, nil)

		for i := 1; i <= 5; i++ {
			message, err := repository.Append(ctx, "alice", nil, fmt.Sprintf("message %d", i))
			req.NoError(err)
			req.Equal(uint64(i), message.ID)
		}

		messages, err := repository.ListFor(ctx, "bob", nil)
		req.NoError(err)
		req.Len(messages, 5)
		for i := 1; i < len(messages); i++ {
			req.Greater(messages[i].ID, messages[i-1].ID)
			req.False(messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
		}
	})

	t.Run("should reject blank and oversized text", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		repository := newRepository(t, nil)

		for _, text := range []string{"", "   ", "\n\t"} {
			_, err := repository.Append(ctx, "alice", lo.ToPtr("bob"), text)
			req.ErrorIs(err, errors.ErrInvalidMessage)
		}

		// At the limit is accepted
		_, err := repository.Append(ctx, "alice", nil, strings.Repeat("a", testMaxTextLength))
		req.NoError(err)

		// One byte over is refused
		_, err = repository.Append(ctx, "alice", nil, strings.Repeat("a", testMaxTextLength+1))
		req.ErrorIs(err, errors.ErrInvalidMessage)

		count, err := repository.Count(ctx)
		req.NoError(err)
		req.Equal(1, count)
	})

	t.Run("should reject invalid UTF-8 and keep history readable", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		repository := newRepository(t, nil)

		_, err := repository.Append(ctx, "alice", nil, "bad \xff\xfe")
		req.ErrorIs(err, errors.ErrInvalidMessage)
		_, err = repository.Append(ctx, "alice", lo.ToPtr("b\xffb"), "hello")
		req.ErrorIs(err, errors.ErrInvalidMessage)
		_, err = repository.Append(ctx, "alice", lo.ToPtr(strings.Repeat("b", 256)), "hello")
		req.ErrorIs(err, errors.ErrInvalidMessage)

		_, err = repository.Append(ctx, "alice", nil, "héllo 👋")
		req.NoError(err)

		messages, err := repository.ListFor(ctx, "bob", nil)
		req.NoError(err)
		req.Len(messages, 1)
		req.Equal("héllo 👋", messages[0].Text)
	})

	t.Run("should return nothing after the highest possible id", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		repository := newRepository(t, nil)

		_, err := repository.Append(ctx, "alice", nil, "hello")
		req.NoError(err)

		for _, since := range []uint64{math.MaxInt64, math.MaxInt64 + 1, math.MaxUint64} {
			messages, err := repository.ListFor(ctx, "bob", lo.ToPtr(since))
			req.NoError(err)
			req.Empty(messages)
		}
	})

	t.Run("should filter direct messages by identity", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		repository := newRepository(t, nil)

		broadcast, err := repository.Append(ctx, "alice", nil, "hello everyone")
		req.NoError(err)
		direct, err := repository.Append(ctx, "alice", lo.ToPtr("bob"), "hello bob")
		req.NoError(err)
		reply, err := repository.Append(ctx, "bob", lo.ToPtr("alice"), "hello alice")
		req.NoError(err)

		ids := func(identity string) []uint64 {
			messages, err := repository.ListFor(ctx, identity, nil)
			req.NoError(err)
			return lo.Map(messages, func(m domain.Message, _ int) uint64 { return m.ID })
		}

		req.Equal([]uint64{broadcast.ID, direct.ID, reply.ID}, ids("alice"))
		req.Equal([]uint64{broadcast.ID, direct.ID, reply.ID}, ids("bob"))
		req.Equal([]uint64{broadcast.ID}, ids("carol"))

		messages, err := repository.ListFor(ctx, "bob", nil)
		req.NoError(err)
		req.Nil(messages[0].ReceiverID)
		req.Equal("bob", *messages[1].ReceiverID)
		req.Equal("hello bob", messages[1].Text)
	})

	t.Run("should resume strictly after since id", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		repository := newRepository(t, nil)

		for i := 0; i < 4; i++ {
			_, err := repository.Append(ctx, "alice", nil, "tick")
			req.NoError(err)
		}

		messages, err := repository.ListFor(ctx, "carol", lo.ToPtr(uint64(2)))
		req.NoError(err)
		req.Len(messages, 2)
		req.Equal(uint64(3), messages[0].ID)

		messages, err = repository.ListFor(ctx, "carol", lo.ToPtr(uint64(4)))
		req.NoError(err)
		req.Empty(messages)
	})

	t.Run("should stop at the page limit", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		repository := newRepository(t, lo.ToPtr(2))

		for i := 0; i < 3; i++ {
			_, err := repository.Append(ctx, "alice", nil, "tick")
			req.NoError(err)
		}

		messages, err := repository.ListFor(ctx, "alice", nil)
		req.NoError(err)
		req.Len(messages, 2)

		messages, err = repository.ListFor(ctx, "alice", lo.ToPtr(messages[1].ID))
		req.NoError(err)
		req.Len(messages, 1)
	})

	t.Run("should keep a total order under concurrent writers", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		repository := newRepository(t, nil)

		const writers, perWriter = 8, 25
		var wg sync.WaitGroup
		errs := make(chan error, writers*perWriter)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					var receiver *string
					if i%2 == 0 {
						receiver = lo.ToPtr(fmt.Sprintf("user-%d", (w+1)%writers))
					}
					if _, err := repository.Append(ctx, fmt.Sprintf("user-%d", w), receiver, "concurrent"); err != nil {
						errs <- err
					}
				}
			}(w)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			req.NoError(err)
		}

		count, err := repository.Count(ctx)
		req.NoError(err)
		req.Equal(writers*perWriter, count)

		// Everything sent or received by user-0 plus all broadcasts, in id order
		messages, err := repository.ListFor(ctx, "user-0", nil)
		req.NoError(err)
		seen := map[uint64]struct{}{}
		for i, message := range messages {
			req.True(message.VisibleTo("user-0"))
			if i > 0 {
				req.Greater(message.ID, messages[i-1].ID)
				req.False(message.CreatedAt.Before(messages[i-1].CreatedAt))
			}
			seen[message.ID] = struct{}{}
		}
		broadcasts := writers * (perWriter / 2)
		req.Len(seen, broadcasts+(perWriter+1)/2*2)
	})
}
