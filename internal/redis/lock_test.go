package redisclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotKey(t *testing.T) {
	doctor := uuid.MustParse("8d7f1c3e-2b4a-4c1e-9f0a-6a5b4c3d2e1f")
	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	assert.Equal(t, "lock:slot:8d7f1c3e-2b4a-4c1e-9f0a-6a5b4c3d2e1f:1749564000", SlotKey(doctor, start))

	// the same instant in another zone maps to the same key
	toronto, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	assert.Equal(t, SlotKey(doctor, start), SlotKey(doctor, start.In(toronto)))
}

// scriptedRedis answers commands in-process so lock behaviour can be tested
// without a server.
type scriptedRedis struct {
	setOK     bool
	scriptErr error
	commands  []string
}

func (h *scriptedRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *scriptedRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands = append(h.commands, cmd.Name())
		switch c := cmd.(type) {
		case *redis.BoolCmd:
			c.SetVal(h.setOK)
			return nil
		case *redis.Cmd:
			if h.scriptErr != nil {
				c.SetErr(h.scriptErr)
				return h.scriptErr
			}
			c.SetVal(int64(1))
			return nil
		}
		return fmt.Errorf("unexpected command %s", cmd.Name())
	}
}

func (h *scriptedRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func newScriptedLocker(t *testing.T, h *scriptedRedis, logs *bytes.Buffer) Locker {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(h)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlotLocker(client, time.Second, zerolog.New(logs))
}

func TestWithSlotLock(t *testing.T) {
	doctor := uuid.New()
	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	t.Run("runs fn and releases", func(t *testing.T) {
		h := &scriptedRedis{setOK: true}
		var logs bytes.Buffer
		locker := newScriptedLocker(t, h, &logs)

		called := false
		err := locker.WithSlotLock(context.Background(), doctor, start, func(ctx context.Context) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called)
		assert.Equal(t, []string{"set", "evalsha"}, h.commands)
		assert.Zero(t, logs.Len())
	})

	t.Run("held key is not acquired", func(t *testing.T) {
		h := &scriptedRedis{setOK: false}
		locker := newScriptedLocker(t, h, &bytes.Buffer{})

		err := locker.WithSlotLock(context.Background(), doctor, start, func(ctx context.Context) error {
			t.Fatal("fn must not run without the lock")
			return nil
		})
		assert.ErrorIs(t, err, ErrLockNotAcquired)
	})

	t.Run("failed release is logged and does not fail the booking", func(t *testing.T) {
		h := &scriptedRedis{setOK: true, scriptErr: errors.New("connection reset")}
		var logs bytes.Buffer
		locker := newScriptedLocker(t, h, &logs)

		err := locker.WithSlotLock(context.Background(), doctor, start, func(ctx context.Context) error {
			return nil
		})
		require.NoError(t, err)
		assert.Contains(t, logs.String(), "slot lock not released")
		assert.Contains(t, logs.String(), "connection reset")
		assert.Contains(t, logs.String(), SlotKey(doctor, start))
	})

	t.Run("fn error is returned after release", func(t *testing.T) {
		h := &scriptedRedis{setOK: true}
		locker := newScriptedLocker(t, h, &bytes.Buffer{})

		boom := errors.New("insert failed")
		err := locker.WithSlotLock(context.Background(), doctor, start, func(ctx context.Context) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, h.commands, "evalsha")
	})
}
