package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/rustamdavlatov/checkout/internal/domain"
)

const (
	defaultRequestTimeout = 15 * time.Second

	salesPath     = "/api/v1/sales"
	purchasesPath = "/api/v1/purchases"
)

// Client — HTTP-клиент сервиса персистентности транзакций. Все вызовы идут
// через circuit breaker: при недоступности внешнего сервиса отправки быстро
// отклоняются, а черновик остаётся нетронутым.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[domain.SubmissionReceipt]
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient задаёт http.Client (таймауты, transport).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient создаёт клиент для baseURL вида http://host:port.
func NewClient(baseURL string, options ...Option) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, option := range options {
		option(client)
	}

	client.breaker = gobreaker.NewCircuitBreaker[domain.SubmissionReceipt](gobreaker.Settings{
		Name:    "persistence-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return client
}

// BreakerState возвращает текущее состояние circuit breaker'а.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// CreateSale создаёт транзакцию продажи во внешнем сервисе.
func (c *Client) CreateSale(ctx context.Context, req domain.SaleSubmission) (domain.SubmissionReceipt, error) {
	return c.post(ctx, salesPath, req)
}

// CreatePurchase создаёт транзакцию закупки во внешнем сервисе.
func (c *Client) CreatePurchase(ctx context.Context, req domain.PurchaseSubmission) (domain.SubmissionReceipt, error) {
	return c.post(ctx, purchasesPath, req)
}

func (c *Client) post(ctx context.Context, path string, payload any) (domain.SubmissionReceipt, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.SubmissionReceipt{}, fmt.Errorf("marshal submission payload: %w", err)
	}

	return c.breaker.Execute(func() (domain.SubmissionReceipt, error) {
		request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return domain.SubmissionReceipt{}, fmt.Errorf("build submission request: %w", err)
		}
		request.Header.Set("Content-Type", "application/json")

		response, err := c.httpClient.Do(request)
		if err != nil {
			return domain.SubmissionReceipt{}, fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
		}
		defer response.Body.Close()

		responseBody, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
		if err != nil {
			return domain.SubmissionReceipt{}, fmt.Errorf("%w: read response: %v", domain.ErrSubmissionFailed, err)
		}

		if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
			return domain.SubmissionReceipt{}, fmt.Errorf("%w: status %d: %s",
				domain.ErrSubmissionFailed, response.StatusCode, errorMessage(responseBody))
		}

		var receipt domain.SubmissionReceipt
		if err := json.Unmarshal(responseBody, &receipt); err != nil {
			return domain.SubmissionReceipt{}, fmt.Errorf("%w: decode response: %v", domain.ErrSubmissionFailed, err)
		}

		return receipt, nil
	})
}

// errorMessage достаёт человекочитаемое сообщение из тела ошибки
// внешнего сервиса; при неудаче возвращает тело как есть.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	message := strings.TrimSpace(string(body))
	if message == "" {
		return "empty response body"
	}
	if len(message) > 256 {
		message = message[:256]
	}
	return message
}
