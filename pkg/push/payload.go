// Package push contains the public contracts and domain models shared by
// every notification provider in the kit: the provider interface, the native
// bridge boundary, the normalized payload shape, and the error taxonomy.
package push

import (
	"fmt"

	"github.com/google/uuid"
)

// Payload is the normalized notification shape handed to application
// callbacks and accepted by SendNotification. After Normalized every declared
// field is present: absent values collapse to empty strings or an empty map,
// so downstream consumers never need nil checks.
type Payload struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data"`
	Image       string            `json:"image"`
	Badge       string            `json:"badge"`
	ClickAction string            `json:"click_action"`
}

// Normalized returns a copy with defaults applied. The ID is filled with a
// fresh UUID when absent so receipts and dedupe logic always have a handle.
func (p Payload) Normalized() Payload {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Data == nil {
		p.Data = make(map[string]string)
	}
	return p
}

// PayloadFromBridge normalizes the loose key/value shape delivered by a
// native bridge event into a Payload. Bridges report provider-defined shapes;
// we accept strings and JSON numbers and drop everything else.
func PayloadFromBridge(raw map[string]any) Payload {
	p := Payload{
		ID:          bridgeString(raw, "id"),
		Title:       bridgeString(raw, "title"),
		Body:        bridgeString(raw, "body"),
		Image:       bridgeString(raw, "image"),
		Badge:       bridgeString(raw, "badge"),
		ClickAction: bridgeString(raw, "click_action"),
		Data:        make(map[string]string),
	}
	if data, ok := raw["data"].(map[string]any); ok {
		for k, v := range data {
			switch val := v.(type) {
			case string:
				p.Data[k] = val
			case float64, int, bool:
				p.Data[k] = fmt.Sprint(val)
			}
		}
	}
	return p.Normalized()
}

func bridgeString(raw map[string]any, key string) string {
	switch val := raw[key].(type) {
	case string:
		return val
	case float64, int:
		return fmt.Sprint(val)
	default:
		return ""
	}
}

// SendRequest is the wire shape the gateway accepts for asynchronous sends.
type SendRequest struct {
	Payload Payload `json:"payload"`
}
