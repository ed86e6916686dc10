package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rustamdavlatov/checkout/internal/metrics"
)

// NewRouter собирает маршруты draft API. checkoutMetrics может быть nil —
// тогда HTTP-метрики не собираются.
func NewRouter(handler *Handler, checkoutMetrics *metrics.CheckoutMetrics) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	if checkoutMetrics != nil {
		router.Use(metricsMiddleware(checkoutMetrics))
	}

	router.Route("/api/v1", func(api chi.Router) {
		api.Route("/drafts", func(drafts chi.Router) {
			drafts.Post("/", handler.createDraft)
			drafts.Route("/{draftID}", func(draft chi.Router) {
				draft.Get("/", handler.getDraft)
				draft.Delete("/", handler.discardDraft)
				draft.Post("/lines", handler.addLine)
				draft.Patch("/lines/{variantID}", handler.updateLine)
				draft.Delete("/lines/{variantID}", handler.removeLine)
				draft.Put("/currency", handler.setCurrency)
				draft.Put("/kassa", handler.setKassa)
				draft.Put("/counterparty", handler.setCounterparty)
				draft.Put("/notes", handler.setNotes)
				draft.Put("/payment-mode", handler.setPaymentMode)
				draft.Put("/initial-payment", handler.setInitialPayment)
				draft.Put("/installment", handler.setInstallment)
				draft.Get("/timeline", handler.timeline)
				draft.Post("/submit", handler.submit)
			})
		})

		api.Get("/registers", handler.listKassy)
		api.Get("/installment-plans", handler.listPlans)
	})

	return router
}

// metricsMiddleware записывает длительность запроса с шаблоном маршрута
// вместо конкретного пути, чтобы не раздувать кардинальность метрики.
func metricsMiddleware(checkoutMetrics *metrics.CheckoutMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			checkoutMetrics.ObserveHTTPRequest(r.Method, route, strconv.Itoa(ww.Status()), time.Since(start))
		})
	}
}
