package ledgerhttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func RegisterRoutes(r chi.Router, s Service, logger *zap.Logger) {
	h := NewHandler(s, logger)

	r.Get("/health", h.Health)

	r.Route("/customers", func(r chi.Router) {
		r.Post("/", h.CreateCustomer)
		r.Get("/{customerID}", h.GetCustomer)
		r.Get("/{customerID}/accounts", h.ListAccounts)
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.OpenAccount)
		r.Route("/{accountNumber}", func(r chi.Router) {
			r.Get("/", h.GetAccount)
			r.Get("/transactions", h.GetTransactions)
			r.Post("/deposit", h.Deposit)
			r.Post("/withdraw", h.Withdraw)
			r.Get("/reconciliation", h.Reconcile)
		})
	})

	r.Post("/transfers", h.Transfer)
	r.Get("/ledgerEntries", h.LedgerEntries)
}

// NewRouter builds the full HTTP handler with request logging and panic
// recovery.
func NewRouter(s Service, logger *zap.Logger) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	RegisterRoutes(router, s, logger)
	return router
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("request served",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
