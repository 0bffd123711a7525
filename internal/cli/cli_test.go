package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"rewardjar-service/internal/domain/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBackend struct {
	mu       sync.Mutex
	batches  int
	batchErr error
	filters  *wallet.QueueListFilters
	onBatch  func(n int)
}

func (f *fakeBackend) ProcessBatch(ctx context.Context) (*wallet.BatchResult, error) {
	f.mu.Lock()
	f.batches++
	n := f.batches
	f.mu.Unlock()
	if f.onBatch != nil {
		f.onBatch(n)
	}
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	return &wallet.BatchResult{Claimed: 3, Succeeded: 2, Retried: 1}, nil
}

func (f *fakeBackend) ListQueue(ctx context.Context, filters *wallet.QueueListFilters) (*wallet.QueueListResponse, error) {
	f.filters = filters
	msg := "apns: status 500"
	return &wallet.QueueListResponse{
		Items: []wallet.QueueItem{{
			ID:           "01JB8Y7M0000000000000000AA",
			Platform:     wallet.PlatformApple,
			Status:       wallet.QueueStatusDead,
			Attempt:      5,
			MaxAttempts:  5,
			ScheduledAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			ErrorMessage: &msg,
		}},
		Total:      1,
		Page:       1,
		PageSize:   20,
		TotalPages: 1,
	}, nil
}

func run(t *testing.T, ctx context.Context, backend Backend, args ...string) (string, error) {
	t.Helper()
	released := false
	opts := &RootOptions{Connect: func(ctx context.Context, logger *zap.Logger) (Backend, func(), error) {
		return backend, func() { released = true }, nil
	}}
	cmd := newRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		assert.True(t, released, "backend should be released")
	}
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "walletctl", cmd.Use)

	for _, path := range [][]string{{"queue"}, {"queue", "process"}, {"queue", "list"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestQueueProcessOnce(t *testing.T) {
	backend := &fakeBackend{}
	out, err := run(t, context.Background(), backend, "queue", "process")
	require.NoError(t, err)
	assert.Equal(t, 1, backend.batches)
	assert.Contains(t, out, "claimed=3 succeeded=2 failed=0 retried=1")
}

func TestQueueProcessJSON(t *testing.T) {
	out, err := run(t, context.Background(), &fakeBackend{}, "--format", "json", "queue", "process")
	require.NoError(t, err)

	var result wallet.BatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 3, result.Claimed)
}

func TestQueueProcessError(t *testing.T) {
	_, err := run(t, context.Background(), &fakeBackend{batchErr: errors.New("db down")}, "queue", "process")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestQueueProcessIntervalStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend := &fakeBackend{onBatch: func(n int) {
		if n == 3 {
			cancel()
		}
	}}

	_, err := run(t, ctx, backend, "queue", "process", "--interval", "1ms")
	require.NoError(t, err)
	assert.Equal(t, 3, backend.batches)
}

func TestQueueListFilters(t *testing.T) {
	backend := &fakeBackend{}
	out, err := run(t, context.Background(), backend, "queue", "list", "--status", "dead", "--platform", "apple", "--page", "2")
	require.NoError(t, err)

	require.NotNil(t, backend.filters.Status)
	assert.Equal(t, wallet.QueueStatusDead, *backend.filters.Status)
	assert.Equal(t, wallet.PlatformApple, *backend.filters.Platform)
	assert.Equal(t, 2, backend.filters.Page)
	assert.Contains(t, out, "01JB8Y7M0000000000000000AA")
	assert.Contains(t, out, "apns: status 500")
	assert.Contains(t, out, "page 1/1, 1 items")
}

func TestQueueListRejectsBadFilter(t *testing.T) {
	backend := &fakeBackend{}
	_, err := run(t, context.Background(), backend, "queue", "list", "--status", "stuck")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Nil(t, backend.filters)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, context.Background(), &fakeBackend{}, "--format", "yaml", "queue", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
