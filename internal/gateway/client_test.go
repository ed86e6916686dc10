package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"

	"github.com/rustamdavlatov/checkout/internal/domain"
)

func TestClientCreateSale(t *testing.T) {
	var got domain.SaleSubmission
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/sales", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "txn-1", "status": "completed"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	receipt, err := client.CreateSale(context.Background(), domain.SaleSubmission{
		CurrencyID: "currency-usd",
		Status:     "completed",
		Items: []domain.SubmissionItem{
			{ProductVariantID: "variant-1", Quantity: 2, PriceMinor: 150000},
		},
	})

	require.NoError(t, err)
	require.Equal(t, "txn-1", receipt.TransactionID)
	require.Equal(t, "completed", receipt.Status)
	require.Equal(t, "currency-usd", got.CurrencyID)
	require.Len(t, got.Items, 1)
	require.Equal(t, int64(150000), got.Items[0].PriceMinor)
}

func TestClientCreatePurchase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/purchases", r.URL.Path)

		var got domain.PurchaseSubmission
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, "supplier-1", got.SupplierID)
		require.Equal(t, "partial", got.Status)

		_ = json.NewEncoder(w).Encode(map[string]string{"id": "txn-2", "status": "partial"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	receipt, err := client.CreatePurchase(context.Background(), domain.PurchaseSubmission{
		SupplierID:          "supplier-1",
		CurrencyID:          "currency-usd",
		Status:              "partial",
		InitialPaymentMinor: 50000,
		Items: []domain.SubmissionItem{
			{ProductVariantID: "variant-1", Quantity: 10, PriceMinor: 9000, DiscountMinor: 500},
		},
	})

	require.NoError(t, err)
	require.Equal(t, "txn-2", receipt.TransactionID)
}

func TestClientRejectedSubmission(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "insufficient stock for variant-1"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.CreateSale(context.Background(), domain.SaleSubmission{CurrencyID: "currency-usd", Status: "completed"})

	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrSubmissionFailed))
	require.Contains(t, err.Error(), "insufficient stock")
}

func TestClientBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	for i := 0; i < 5; i++ {
		_, err := client.CreateSale(context.Background(), domain.SaleSubmission{CurrencyID: "currency-usd"})
		require.ErrorIs(t, err, domain.ErrSubmissionFailed)
	}

	_, err := client.CreateSale(context.Background(), domain.SaleSubmission{CurrencyID: "currency-usd"})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}
