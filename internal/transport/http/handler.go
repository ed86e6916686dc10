package http

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/rustamdavlatov/checkout/internal/domain"
	"github.com/rustamdavlatov/checkout/internal/service/checkout"
)

const defaultIdempotencyTTL = 24 * time.Hour

// Handler обслуживает draft API поверх checkout-сервиса.
type Handler struct {
	service        *checkout.Service
	idempotency    domain.IdempotencyRepository
	logger         *log.Entry
	idempotencyTTL time.Duration
}

// NewHandler создаёт HTTP-обработчик draft API. idempotency может быть nil —
// тогда заголовок Idempotency-Key игнорируется.
func NewHandler(service *checkout.Service, idempotency domain.IdempotencyRepository, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Handler{
		service:        service,
		idempotency:    idempotency,
		logger:         logger,
		idempotencyTTL: defaultIdempotencyTTL,
	}
}

type createDraftRequest struct {
	Kind string `json:"kind"`
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	var req createDraftRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, err := h.service.CreateDraft(r.Context(), domain.DraftKind(req.Kind))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newDraftView(draft))
}

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.GetDraft(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

func (h *Handler) discardDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Discard(r.Context(), chi.URLParam(r, "draftID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addLineRequest struct {
	VariantID string `json:"variantId"`
	PriceType string `json:"priceType,omitempty"`
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, err := h.service.AddItem(r.Context(), chi.URLParam(r, "draftID"), req.VariantID, domain.PriceType(req.PriceType))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

type updateLineRequest struct {
	Quantity    *int32     `json:"quantity,omitempty"`
	Price       *int64     `json:"price,omitempty"`
	Discount    *int64     `json:"discount,omitempty"`
	BatchNumber *string    `json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
}

// updateLine применяет частичное обновление позиции: каждое присутствующее
// поле — отдельная мутация со своим событием timeline.
func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	var req updateLineRequest
	if !h.decode(w, r, &req) {
		return
	}

	draftID := chi.URLParam(r, "draftID")
	variantID := chi.URLParam(r, "variantID")
	ctx := r.Context()

	var draft domain.Draft
	var err error
	applied := false

	if req.Quantity != nil {
		if draft, err = h.service.UpdateQuantity(ctx, draftID, variantID, *req.Quantity); err != nil {
			writeError(w, err)
			return
		}
		applied = true
	}
	if req.Price != nil {
		if draft, err = h.service.SetUnitPrice(ctx, draftID, variantID, *req.Price); err != nil {
			writeError(w, err)
			return
		}
		applied = true
	}
	if req.Discount != nil {
		if draft, err = h.service.SetUnitDiscount(ctx, draftID, variantID, *req.Discount); err != nil {
			writeError(w, err)
			return
		}
		applied = true
	}
	if req.BatchNumber != nil {
		if draft, err = h.service.SetBatch(ctx, draftID, variantID, *req.BatchNumber, req.ExpiryDate); err != nil {
			writeError(w, err)
			return
		}
		applied = true
	}

	if !applied {
		draft, err = h.service.GetDraft(ctx, draftID)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.RemoveItem(r.Context(), chi.URLParam(r, "draftID"), chi.URLParam(r, "variantID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

type setCurrencyRequest struct {
	CurrencyID string `json:"currencyId"`
	Confirm    bool   `json:"confirm,omitempty"`
}

func (h *Handler) setCurrency(w http.ResponseWriter, r *http.Request) {
	var req setCurrencyRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, err := h.service.SetCurrency(r.Context(), chi.URLParam(r, "draftID"), req.CurrencyID, req.Confirm)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

type setKassaRequest struct {
	KassaID string `json:"kassaId"`
}

func (h *Handler) setKassa(w http.ResponseWriter, r *http.Request) {
	var req setKassaRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, err := h.service.SetKassa(r.Context(), chi.URLParam(r, "draftID"), req.KassaID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

type setCounterpartyRequest struct {
	CounterpartyID string `json:"counterpartyId"`
}

func (h *Handler) setCounterparty(w http.ResponseWriter, r *http.Request) {
	var req setCounterpartyRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, err := h.service.SetCounterparty(r.Context(), chi.URLParam(r, "draftID"), req.CounterpartyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

type setNotesRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) setNotes(w http.ResponseWriter, r *http.Request) {
	var req setNotesRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, err := h.service.SetNotes(r.Context(), chi.URLParam(r, "draftID"), req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

type setPaymentModeRequest struct {
	Mode string `json:"mode"`
}

func (h *Handler) setPaymentMode(w http.ResponseWriter, r *http.Request) {
	var req setPaymentModeRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, err := h.service.SetPaymentMode(r.Context(), chi.URLParam(r, "draftID"), domain.PaymentMode(req.Mode))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

type setInitialPaymentRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) setInitialPayment(w http.ResponseWriter, r *http.Request) {
	var req setInitialPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, err := h.service.SetInitialPayment(r.Context(), chi.URLParam(r, "draftID"), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

type setInstallmentRequest struct {
	InitialPayment int64     `json:"initialPayment"`
	TotalMonths    int32     `json:"totalMonths"`
	PlanID         string    `json:"planId,omitempty"`
	DueDate        time.Time `json:"dueDate"`
}

// setInstallment сохраняет параметры рассрочки. Некорректный взнос не
// прячется: параметры записаны, ответ несёт invalid-предпросмотр, отправка
// будет заблокирована валидацией.
func (h *Handler) setInstallment(w http.ResponseWriter, r *http.Request) {
	var req setInstallmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, _, err := h.service.SetInstallment(r.Context(), chi.URLParam(r, "draftID"), checkout.InstallmentInput{
		InitialPaymentMinor: req.InitialPayment,
		TotalMonths:         req.TotalMonths,
		PlanID:              req.PlanID,
		DueDate:             req.DueDate,
	})
	if err != nil && !errors.Is(err, domain.ErrInvalidInitialPayment) {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "draftID")
	if _, err := h.service.GetDraft(r.Context(), draftID); err != nil {
		writeError(w, err)
		return
	}

	events, err := h.service.Timeline(r.Context(), draftID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTimelineViews(events))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "draftID")
	key := r.Header.Get("Idempotency-Key")

	if key != "" && h.idempotency != nil {
		if done := h.beginIdempotent(w, r, key, draftID); done {
			return
		}
	}

	receipt, err := h.service.Submit(r.Context(), draftID)
	if err != nil {
		status := statusFor(err)
		body, _ := json.Marshal(errorResponse{Error: err.Error()})
		h.finishIdempotent(key, body, status, false)
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	body, _ := json.Marshal(receipt)
	h.finishIdempotent(key, body, http.StatusCreated, true)
	writeJSON(w, http.StatusCreated, receipt)
}

// beginIdempotent регистрирует ключ. Возвращает true, если ответ уже
// записан (повтор или конфликт) и обработку продолжать не нужно.
func (h *Handler) beginIdempotent(w http.ResponseWriter, r *http.Request, key, draftID string) bool {
	hash := requestHash(r.Method, r.URL.Path, draftID)
	_, err := h.idempotency.CreateProcessing(key, hash, time.Now().UTC().Add(h.idempotencyTTL))
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		writeError(w, err)
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		record, getErr := h.idempotency.Get(key)
		if getErr != nil || record.Status == domain.IdempotencyStatusProcessing {
			writeError(w, domain.ErrSubmissionInFlight)
			return true
		}
		// Повтор завершённого запроса: отдаём сохранённый ответ.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(record.HTTPStatus)
		_, _ = w.Write(record.ResponseBody)
	default:
		writeError(w, err)
	}
	return true
}

func (h *Handler) finishIdempotent(key string, body []byte, status int, ok bool) {
	if key == "" || h.idempotency == nil {
		return
	}
	var err error
	if ok {
		err = h.idempotency.MarkDone(key, body, status)
	} else {
		err = h.idempotency.MarkFailed(key, body, status)
	}
	if err != nil {
		h.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to finalize idempotency record")
	}
}

func (h *Handler) listKassy(w http.ResponseWriter, r *http.Request) {
	kassy, err := h.service.ListKassy(r.Context(), r.URL.Query().Get("currency_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newKassaViews(kassy))
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListPlans(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlanViews(plans))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func requestHash(parts ...string) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(part))
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
