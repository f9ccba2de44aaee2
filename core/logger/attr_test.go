package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dessimlab/dessim/core/logger"
)

func TestError(t *testing.T) {
	t.Parallel()

	// Nil errors produce the empty Attr, which slog handlers drop.
	assert.Equal(t, slog.Attr{}, logger.Error(nil))

	err := errors.New("boom")
	attr := logger.Error(err)
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())
}

func TestErrors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Errors())
	assert.Equal(t, slog.Attr{}, logger.Errors(nil, nil))

	first := errors.New("first")
	second := errors.New("second")
	attr := logger.Errors(first, nil, second)
	assert.Equal(t, "errors", attr.Key)

	grouped := attr.Value.Group()
	assert.Len(t, grouped, 2)
	assert.Equal(t, "0", grouped[0].Key)
	assert.Equal(t, "2", grouped[1].Key, "index keys track original positions")
}

func TestEmptyAttrForAbsentValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Notification(""))
	assert.Equal(t, slog.Attr{}, logger.BroadcastID(""))
	assert.Equal(t, slog.Attr{}, logger.Subscriber(""))
	assert.Equal(t, slog.Attr{}, logger.Panic(nil))
	assert.Equal(t, slog.Attr{}, logger.Key("meta", nil))
}

func TestBroadcastAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.String("layer", "sim"), logger.Layer("sim"))
	assert.Equal(t, slog.String("caller", "ui"), logger.Caller("ui"))
	assert.Equal(t, slog.String("notification", "TickNotification"), logger.Notification("TickNotification"))
	assert.Equal(t, slog.String("broadcast_id", "b-1"), logger.BroadcastID("b-1"))
	assert.Equal(t, slog.String("policy", "cross_thread_first"), logger.Policy("cross_thread_first"))
	assert.Equal(t, slog.String("task", "broadcast Tick"), logger.Task("broadcast Tick"))
}

func TestGroupAndMetadata(t *testing.T) {
	t.Parallel()

	attr := logger.Group("dispatch", logger.Layer("sim"), logger.Count("handlers", 3))
	assert.Equal(t, "dispatch", attr.Key)
	assert.Len(t, attr.Value.Group(), 2)

	assert.Equal(t, slog.Int("handlers", 3), logger.Count("handlers", 3))
	assert.Equal(t, slog.String("component", "router"), logger.Component("router"))
	assert.Equal(t, slog.Duration("duration", time.Second), logger.Duration(time.Second))
}

func TestElapsed(t *testing.T) {
	t.Parallel()

	attr := logger.Elapsed(time.Now().Add(-time.Minute))
	assert.Equal(t, "elapsed", attr.Key)
	assert.GreaterOrEqual(t, attr.Value.Duration(), time.Minute)
}

func TestStack(t *testing.T) {
	t.Parallel()

	attr := logger.Stack()
	assert.Equal(t, "stack", attr.Key)
	assert.Contains(t, attr.Value.String(), "TestStack", "trace covers the calling goroutine")
}
