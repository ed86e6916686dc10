package http

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/rustamdavlatov/checkout/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor переводит доменную ошибку в HTTP-статус. Ошибки валидации
// черновика дают 422: запрос корректен, но состояние черновика не позволяет
// операцию.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrDraftNotFound),
		errors.Is(err, domain.ErrLineNotFound),
		errors.Is(err, domain.ErrVariantNotFound),
		errors.Is(err, domain.ErrKassaNotFound),
		errors.Is(err, domain.ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDraftVersionConflict),
		errors.Is(err, domain.ErrSubmissionInFlight),
		errors.Is(err, domain.ErrCurrencyChangeConfirmation),
		errors.Is(err, domain.ErrIdempotencyHashMismatch),
		errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSubmissionFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrCurrencyRequired),
		errors.Is(err, domain.ErrSupplierRequired),
		errors.Is(err, domain.ErrCounterpartyRequired),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrKassaRequired),
		errors.Is(err, domain.ErrKassaCurrencyMismatch),
		errors.Is(err, domain.ErrInvalidDiscount),
		errors.Is(err, domain.ErrDiscountNotAllowed),
		errors.Is(err, domain.ErrBatchNotAllowed),
		errors.Is(err, domain.ErrInvalidInitialPayment),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidUnitPrice),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidPaymentMode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
