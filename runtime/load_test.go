package runtime_test

import (
	"chat-relay/domain"
	"chat-relay/mocks"
	"chat-relay/runtime"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// TestRelay_LoadTest floods the relay from many writers while live feeds drain.
// The store is mocked so the disk does not bound the throughput.
func TestRelay_LoadTest(t *testing.T) {
	if testing.Short() {
		t.Skip("load test")
	}
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := gomock.NewController(t)
	validator := mocks.NewMockICredentialValidator(ctrl)
	messageRepository := mocks.NewMockIMessageRepository(ctrl)

	validator.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, credential string) (domain.Session, error) {
			return domain.Session{Identity: credential, IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}, nil
		}).AnyTimes()

	var lastID atomic.Uint64
	messageRepository.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sender string, receiver *string, text string) (domain.Message, error) {
			time.Sleep(100 * time.Microsecond)
			return domain.Message{ID: lastID.Add(1), SenderID: sender, ReceiverID: receiver, Text: text, CreatedAt: time.Now()}, nil
		}).AnyTimes()

	log := slog.New(slog.DiscardHandler)
	registry := runtime.NewRegistry(log)
	relay := runtime.NewRelay(log, validator, messageRepository, registry, 10_000, time.Hour)

	numClients := 50
	messagesPerClient := 100
	numListeners := 10

	var received atomic.Uint64
	var listeners sync.WaitGroup
	for i := 0; i < numListeners; i++ {
		feed, err := relay.LiveFeed(ctx, fmt.Sprintf("listener-%d", i))
		req.NoError(err)
		listeners.Add(1)
		go func() {
			defer listeners.Done()
			defer feed.Close()
			for {
				if _, err := feed.Next(ctx); err != nil {
					return
				}
				received.Add(1)
			}
		}()
	}

	var successCount, failureCount atomic.Uint64
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			for j := 0; j < messagesPerClient; j++ {
				cmd := domain.PostMessageCommand{Credential: fmt.Sprintf("user-%d", clientID), Text: "load test message"}
				if _, err := relay.Submit(ctx, cmd); err != nil {
					failureCount.Add(1)
				} else {
					successCount.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()
	duration := time.Since(start)

	total := uint64(numClients * messagesPerClient)
	req.Equal(total, successCount.Load())
	req.Zero(failureCount.Load())

	// Every broadcast reaches every listener exactly once
	req.Eventually(func() bool {
		return received.Load() == total*uint64(numListeners)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	listeners.Wait()

	t.Logf("%d messages in %v (%.2f msg/sec), %d deliveries",
		successCount.Load(), duration, float64(successCount.Load())/duration.Seconds(), received.Load())
}
