package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qr-attendance-backend/internal/access"
	"qr-attendance-backend/internal/attendance"
)

type fakePins struct {
	valid   bool
	bound   *int64
	err     error
	queried []string
}

func (f *fakePins) ValidatePin(ctx context.Context, email, pin, role, date string) (bool, error) {
	f.queried = append(f.queried, date)
	return f.valid, f.err
}

func (f *fakePins) ResolvePinEvent(ctx context.Context, pin, role, date string) (*int64, error) {
	return f.bound, nil
}

func TestNewSessionFromPin(t *testing.T) {
	ctx := context.Background()
	event := int64(12)

	t.Run("officer with bound pin", func(t *testing.T) {
		pins := &fakePins{valid: true, bound: &event}
		sess, err := NewSessionFromPin(ctx, pins, access.RoleROTC, "rotc@example.edu", "1234", "2026-03-02")
		require.NoError(t, err)
		assert.True(t, sess.Capabilities.CanScan)
		got, err := sess.EventFor(99)
		require.NoError(t, err)
		assert.Equal(t, event, got, "pin-bound event wins over the selection")
	})

	t.Run("officer with wrong pin", func(t *testing.T) {
		_, err := NewSessionFromPin(ctx, &fakePins{}, access.RoleUSC, "usc@example.edu", "0000", "2026-03-02")
		assert.ErrorIs(t, err, ErrInvalidPin)
	})

	t.Run("officer without pin", func(t *testing.T) {
		_, err := NewSessionFromPin(ctx, &fakePins{valid: true}, access.RoleUSC, "usc@example.edu", "", "2026-03-02")
		assert.ErrorIs(t, err, ErrInvalidPin)
	})

	t.Run("store failure", func(t *testing.T) {
		_, err := NewSessionFromPin(ctx, &fakePins{err: errors.New("down")}, access.RoleROTC, "rotc@example.edu", "1234", "2026-03-02")
		assert.True(t, attendance.IsStorage(err))
	})

	t.Run("admin skips pin", func(t *testing.T) {
		pins := &fakePins{}
		sess, err := NewSessionFromPin(ctx, pins, access.RoleSuperAdmin, "admin@example.edu", "", "2026-03-02")
		require.NoError(t, err)
		assert.Nil(t, sess.BoundEventID)
		assert.Empty(t, pins.queried)
	})
}

func TestPinDate(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	// 17:30 UTC is already the next day in Manila.
	now := time.Date(2026, 3, 1, 17, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-02", PinDate(now, manila))
	assert.Equal(t, "2026-03-01", PinDate(now, nil))
}
