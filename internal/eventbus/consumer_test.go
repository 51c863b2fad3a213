package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessMessage(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	value, err := json.Marshal(envelope{
		Type:    "transfer.completed",
		Payload: json.RawMessage(`{"amount":"100.00"}`),
	})
	require.NoError(t, err)

	t.Run("dispatches type and payload", func(t *testing.T) {
		var gotType string
		var gotPayload []byte
		err := processMessage(ctx, logger, value, func(_ context.Context, eventType string, payload []byte) error {
			gotType = eventType
			gotPayload = payload
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "transfer.completed", gotType)
		assert.JSONEq(t, `{"amount":"100.00"}`, string(gotPayload))
	})

	t.Run("handler error surfaces so the offset stays uncommitted", func(t *testing.T) {
		handlerErr := errors.New("database unavailable")
		var calls int
		err := processMessage(ctx, logger, value, func(context.Context, string, []byte) error {
			calls++
			return handlerErr
		})
		require.ErrorIs(t, err, handlerErr)
		assert.Equal(t, 1, calls)

		// The same bytes succeed on a later attempt once the handler
		// recovers; nothing about the message is consumed by the failure.
		err = processMessage(ctx, logger, value, func(context.Context, string, []byte) error {
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("malformed payload is done, not retried", func(t *testing.T) {
		var calls int
		err := processMessage(ctx, logger, []byte("{not json"), func(context.Context, string, []byte) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 0, calls)
	})
}
