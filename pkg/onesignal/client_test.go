package onesignal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-kit/pkg/onesignal"
)

func TestClient_Lifecycle(t *testing.T) {
	ctx := context.Background()

	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Method+" "+r.URL.Path)

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/players/player-1":
			assert.Equal(t, "app-1", r.URL.Query().Get("app_id"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":   "player-1",
				"tags": map[string]string{"news": "1"},
			})

		case r.Method == http.MethodPut && r.URL.Path == "/players/player-1":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "app-1", body["app_id"])
			w.WriteHeader(http.StatusOK)

		case r.Method == http.MethodPost && r.URL.Path == "/notifications":
			assert.Equal(t, "Basic rest-key", r.Header.Get("Authorization"))
			var n onesignal.Notification
			require.NoError(t, json.NewDecoder(r.Body).Decode(&n))
			assert.Equal(t, "app-1", n.AppID)
			w.WriteHeader(http.StatusOK)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := onesignal.NewClient("app-1", "rest-key", onesignal.WithBaseURL(server.URL))

	t.Run("GetPlayer", func(t *testing.T) {
		player, err := client.GetPlayer(ctx, "player-1")
		require.NoError(t, err)
		assert.Equal(t, "player-1", player.ID)
		assert.Equal(t, "1", player.Tags["news"])
	})

	t.Run("UpdateTags", func(t *testing.T) {
		err := client.UpdateTags(ctx, "player-1", map[string]string{"news": "1"})
		require.NoError(t, err)
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		err := client.Unsubscribe(ctx, "player-1")
		require.NoError(t, err)
	})

	t.Run("CreateNotification", func(t *testing.T) {
		err := client.CreateNotification(ctx, &onesignal.Notification{
			IncludePlayerIDs: []string{"player-1"},
			Contents:         map[string]string{"en": "hello"},
		})
		require.NoError(t, err)
		assert.Contains(t, requests, "POST /notifications")
	})
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateNotification without REST key fails before any I/O", func(t *testing.T) {
		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		client := onesignal.NewClient("app-1", "", onesignal.WithBaseURL(server.URL))
		err := client.CreateNotification(ctx, &onesignal.Notification{})

		require.ErrorIs(t, err, onesignal.ErrNoRESTKey)
		assert.False(t, called, "no HTTP request may be made without a key")
	})

	t.Run("Non-2xx responses surface status and body snippet", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errors":["Invalid player id"]}`))
		}))
		defer server.Close()

		client := onesignal.NewClient("app-1", "key", onesignal.WithBaseURL(server.URL))
		_, err := client.GetPlayer(ctx, "nope")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
		assert.Contains(t, err.Error(), "Invalid player id")
	})
}
