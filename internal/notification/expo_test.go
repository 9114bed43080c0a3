package notification_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domremont/backend/internal/notification"
)

type expoMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

func okResponse(n int) map[string]any {
	tickets := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		tickets = append(tickets, map[string]string{"status": "ok"})
	}
	return map[string]any{"data": tickets}
}

func TestSendBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers all tokens in one chunk", func(t *testing.T) {
		var received []expoMessage
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			require.NoError(t, json.NewEncoder(w).Encode(okResponse(len(received))))
		}))
		defer srv.Close()

		d := notification.NewExpoDispatcherWithURL(srv.URL)
		delivered := d.SendBatch(ctx, []string{"ExponentPushToken[a]", "ExponentPushToken[b]"},
			"Новый заказ в вашем городе!", "Появился новый заказ", map[string]string{"type": "new_order"})

		assert.Equal(t, 2, delivered)
		require.Len(t, received, 2)
		assert.Equal(t, "ExponentPushToken[a]", received[0].To)
		assert.Equal(t, "Новый заказ в вашем городе!", received[0].Title)
		assert.Equal(t, "new_order", received[0].Data["type"])
	})

	t.Run("splits into chunks of one hundred", func(t *testing.T) {
		var mu sync.Mutex
		var chunkSizes []int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var msgs []expoMessage
			require.NoError(t, json.NewDecoder(r.Body).Decode(&msgs))
			mu.Lock()
			chunkSizes = append(chunkSizes, len(msgs))
			mu.Unlock()
			require.NoError(t, json.NewEncoder(w).Encode(okResponse(len(msgs))))
		}))
		defer srv.Close()

		tokens := make([]string, 250)
		for i := range tokens {
			tokens[i] = fmt.Sprintf("ExponentPushToken[%d]", i)
		}

		d := notification.NewExpoDispatcherWithURL(srv.URL)
		delivered := d.SendBatch(ctx, tokens, "t", "b", nil)

		assert.Equal(t, 250, delivered)
		assert.Equal(t, []int{100, 100, 50}, chunkSizes)
	})

	t.Run("counts only ok tickets", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := map[string]any{"data": []map[string]string{
				{"status": "ok"},
				{"status": "error", "message": "DeviceNotRegistered"},
			}}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		}))
		defer srv.Close()

		d := notification.NewExpoDispatcherWithURL(srv.URL)
		delivered := d.SendBatch(ctx, []string{"a", "b"}, "t", "b", nil)

		assert.Equal(t, 1, delivered)
	})

	t.Run("server failure delivers nothing but does not panic", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		d := notification.NewExpoDispatcherWithURL(srv.URL)
		assert.Equal(t, 0, d.SendBatch(ctx, []string{"a"}, "t", "b", nil))
	})

	t.Run("empty token list is a no-op", func(t *testing.T) {
		d := notification.NewExpoDispatcherWithURL("http://127.0.0.1:0")
		assert.Equal(t, 0, d.SendBatch(ctx, nil, "t", "b", nil))
	})
}
