package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-push-kit/pkg/push"
)

// Sender is the slice of the kit surface the processor drives.
// *pushkit.Kit satisfies it.
type Sender interface {
	SendNotification(ctx context.Context, payload push.Payload) error
}

// NewProcessor creates the terminal pipeline stage: each validated send
// request becomes one kit delivery.
//
// Error discipline decides redelivery: transport failures return an error so
// the message is retried, while precondition failures (no registration yet,
// no server credential) are dropped after logging because redelivery cannot
// fix them.
func NewProcessor(
	sender Sender,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[push.SendRequest] {

	return func(ctx context.Context, original messagepipeline.Message, request *push.SendRequest) error {
		procLogger := logger.With(
			"payload_id", request.Payload.ID,
			"pubsub_msg_id", original.ID,
		)

		err := sender.SendNotification(ctx, request.Payload)
		switch {
		case err == nil:
			procLogger.Info("Notification dispatched")
			return nil
		case errors.Is(err, push.ErrTokenUnavailable):
			procLogger.Warn("No registration token; dropping notification")
			return nil
		case errors.Is(err, push.ErrMissingCredential):
			procLogger.Error("Server credential missing; dropping notification")
			return nil
		default:
			procLogger.Error("Dispatch failed", "err", err)
			return err
		}
	}
}
