package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/domremont/backend/internal/metrics"
)

const (
	defaultExpoPushURL = "https://exp.host/--/api/v2/push/send"

	// Expo Push API принимает до 100 уведомлений за один запрос.
	batchSize = 100
)

// Dispatcher отправляет push-уведомления. Доставка best-effort:
// ошибки логируются и никогда не доходят до вызывающего кода.
type Dispatcher interface {
	SendBatch(ctx context.Context, tokens []string, title, body string, data map[string]string) int
}

type pushMessage struct {
	To        string            `json:"to"`
	Sound     string            `json:"sound"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Priority  string            `json:"priority"`
	ChannelID string            `json:"channelId"`
}

type pushTicket struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type pushResponse struct {
	Data []pushTicket `json:"data"`
}

type expoDispatcher struct {
	client *http.Client
	url    string
}

func NewExpoDispatcher() Dispatcher {
	return &expoDispatcher{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    defaultExpoPushURL,
	}
}

// NewExpoDispatcherWithURL используется в тестах с httptest-сервером.
func NewExpoDispatcherWithURL(url string) Dispatcher {
	return &expoDispatcher{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
	}
}

// SendBatch рассылает уведомления пачками и возвращает число доставленных.
func (d *expoDispatcher) SendBatch(ctx context.Context, tokens []string, title, body string, data map[string]string) int {
	if len(tokens) == 0 {
		return 0
	}

	delivered := 0
	for start := 0; start < len(tokens); start += batchSize {
		end := start + batchSize
		if end > len(tokens) {
			end = len(tokens)
		}

		n, err := d.sendChunk(ctx, tokens[start:end], title, body, data)
		if err != nil {
			log.Error().Err(err).Int("batch_size", end-start).Msg("failed to send push batch")
			continue
		}
		delivered += n
	}

	metrics.PushNotificationsSent.Add(float64(delivered))
	log.Info().Int("delivered", delivered).Int("requested", len(tokens)).Msg("push notifications dispatched")
	return delivered
}

func (d *expoDispatcher) sendChunk(ctx context.Context, tokens []string, title, body string, data map[string]string) (int, error) {
	messages := make([]pushMessage, 0, len(tokens))
	for _, token := range tokens {
		messages = append(messages, pushMessage{
			To:        token,
			Sound:     "default",
			Title:     title,
			Body:      body,
			Data:      data,
			Priority:  "high",
			ChannelID: "default",
		})
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal push messages: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("push service returned status %d", resp.StatusCode)
	}

	var result pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode push response: %w", err)
	}

	delivered := 0
	for _, ticket := range result.Data {
		if ticket.Status == "ok" {
			delivered++
		} else if ticket.Message != "" {
			log.Warn().Str("message", ticket.Message).Msg("push ticket rejected")
		}
	}

	return delivered, nil
}
