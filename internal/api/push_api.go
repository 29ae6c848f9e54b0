// Package api exposes the push kit over HTTP for the gateway service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-push-kit/pkg/push"
)

// Notifier is the slice of the kit surface the HTTP handlers use.
// *pushkit.Kit satisfies it.
type Notifier interface {
	HandleRegistration(ctx context.Context, token string) error
	DeleteToken(ctx context.Context) error
	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error
	Subscriptions(ctx context.Context) ([]string, error)
	SendNotification(ctx context.Context, payload push.Payload) error
}

type PushAPI struct {
	Kit    Notifier
	Logger *slog.Logger
}

func NewPushAPI(kit Notifier, logger *slog.Logger) *PushAPI {
	return &PushAPI{
		Kit:    kit,
		Logger: logger,
	}
}

type RegisterRequest struct {
	// Token is an FCM token, a OneSignal player ID, or a serialized browser
	// push subscription; the provider tells them apart.
	Token string `json:"token"`
}

type TopicRequest struct {
	Topic string `json:"topic"`
}

type SubscriptionsResponse struct {
	Topics []string `json:"topics"`
}

func (api *PushAPI) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := api.Kit.HandleRegistration(ctx, req.Token); err != nil {
		api.writeKitError(w, "register", err)
		return
	}
	api.Logger.Info("Registration accepted", "user", userID)

	w.WriteHeader(http.StatusNoContent)
}

func (api *PushAPI) Unregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Unregister is idempotent; a missing token is not worth a client error.
	if err := api.Kit.DeleteToken(ctx); err != nil && !errors.Is(err, push.ErrTokenUnavailable) {
		if errors.Is(err, push.ErrNotInitialized) {
			api.writeKitError(w, "unregister", err)
			return
		}
		api.Logger.Warn("Unregister failed", "user", userID, "err", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (api *PushAPI) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := middleware.GetUserHandleFromContext(ctx); !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req TopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Topic == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing topic")
		return
	}

	if err := api.Kit.Subscribe(ctx, req.Topic); err != nil {
		api.writeKitError(w, "subscribe", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (api *PushAPI) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := middleware.GetUserHandleFromContext(ctx); !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req TopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Topic == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing topic")
		return
	}

	if err := api.Kit.Unsubscribe(ctx, req.Topic); err != nil {
		api.writeKitError(w, "unsubscribe", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (api *PushAPI) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := middleware.GetUserHandleFromContext(ctx); !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	topics, err := api.Kit.Subscriptions(ctx)
	if err != nil {
		api.writeKitError(w, "subscriptions", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(SubscriptionsResponse{Topics: topics})
}

func (api *PushAPI) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req push.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := api.Kit.SendNotification(ctx, req.Payload); err != nil {
		api.writeKitError(w, "send", err)
		return
	}
	api.Logger.Info("Notification sent", "user", userID)

	w.WriteHeader(http.StatusAccepted)
}

// writeKitError maps kit error values to HTTP statuses. Internal detail
// stays in the log; the client gets the category.
func (api *PushAPI) writeKitError(w http.ResponseWriter, op string, err error) {
	api.Logger.Error("Kit operation failed", "op", op, "err", err)
	switch {
	case errors.Is(err, push.ErrNotInitialized):
		response.WriteJSONError(w, http.StatusServiceUnavailable, "push provider not initialized")
	case errors.Is(err, push.ErrMissingCredential):
		response.WriteJSONError(w, http.StatusForbidden, "server credential required")
	case errors.Is(err, push.ErrTokenUnavailable):
		response.WriteJSONError(w, http.StatusConflict, "no registration token")
	default:
		response.WriteJSONError(w, http.StatusInternalServerError, op+" failed")
	}
}
