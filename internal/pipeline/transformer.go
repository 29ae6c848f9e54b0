// Package pipeline contains the streaming components of the gateway: raw
// Pub/Sub messages in, kit send calls out.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-push-kit/pkg/push"
)

// SendRequestTransformer is a dataflow Transformer that unmarshals and
// validates a raw message payload into a structured push.SendRequest.
//
// Malformed or empty requests return an error with skip=true so the
// StreamingService applies its Nack/DLQ handling instead of retrying
// a poison message forever.
func SendRequestTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*push.SendRequest, bool, error) {
	var req push.SendRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal send request from message %s: %w", msg.ID, err)
	}

	if req.Payload.Title == "" && req.Payload.Body == "" && len(req.Payload.Data) == 0 {
		return nil, true, fmt.Errorf("send request %s carries no content", msg.ID)
	}

	return &req, false, nil
}
