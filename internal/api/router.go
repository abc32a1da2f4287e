// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradedesk-ledger/internal/api/auth"
	"tradedesk-ledger/internal/api/handler"
)

// Handlers groups the HTTP handlers the router mounts.
type Handlers struct {
	Balances *handler.BalanceHandler
	Requests *handler.RequestHandler
	Signals  *handler.SignalHandler
	Admin    *handler.AdminHandler
}

// NewRouter sets up and returns a new HTTP router. limiter may be nil.
func NewRouter(h Handlers, jwtSecret string, limiter *auth.RateLimiter, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Middleware(jwtSecret))
		r.Use(limiter.Middleware)

		r.Route("/balances", func(r chi.Router) {
			r.Get("/", h.Balances.ListBalances)
			r.Get("/{currency}", h.Balances.GetBalance)
			r.Get("/{currency}/entries", h.Balances.ListEntries)
		})

		r.Route("/deposits", func(r chi.Router) {
			r.Post("/", h.Requests.RequestDeposit)
			r.Get("/", h.Requests.ListDeposits)
			r.Get("/{id}", h.Requests.GetDeposit)
			r.Post("/{id}/cancel", h.Requests.CancelDeposit)
		})

		r.Route("/withdrawals", func(r chi.Router) {
			r.Post("/", h.Requests.RequestWithdrawal)
			r.Get("/", h.Requests.ListWithdrawals)
			r.Get("/{id}", h.Requests.GetWithdrawal)
			r.Post("/{id}/cancel", h.Requests.CancelWithdrawal)
		})

		r.Route("/signals", func(r chi.Router) {
			r.Get("/", h.Signals.ListSignals)
			r.Get("/usages", h.Signals.ListMyUsages)
			r.Get("/{id}", h.Signals.GetSignal)
			r.Post("/{id}/join", h.Signals.JoinSignal)
		})

		r.Get("/packages", h.Admin.ListPackages)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin)

			r.Get("/deposits", h.Requests.ListDeposits)
			r.Get("/deposits/{id}", h.Requests.GetDeposit)
			r.Post("/deposits/{id}/approve", h.Requests.ApproveDeposit)
			r.Post("/deposits/{id}/reject", h.Requests.RejectDeposit)

			r.Get("/withdrawals", h.Requests.ListWithdrawals)
			r.Get("/withdrawals/{id}", h.Requests.GetWithdrawal)
			r.Post("/withdrawals/{id}/approve", h.Requests.ApproveWithdrawal)
			r.Post("/withdrawals/{id}/reject", h.Requests.RejectWithdrawal)

			r.Post("/signals", h.Signals.CreateSignal)
			r.Get("/signals/{id}/usages", h.Signals.ListSignalUsages)
			r.Post("/signals/{id}/execute", h.Signals.ExecuteSignal)
			r.Post("/signals/{id}/cancel", h.Signals.CancelSignal)
			r.Post("/signals/{id}/expire", h.Signals.ExpireSignal)

			r.Post("/adjustments", h.Admin.AdjustBalance)
			r.Get("/users/{userID}/adjustments", h.Admin.ListAdjustments)
			r.Get("/users/{userID}/balances", h.Balances.ListBalances)

			r.Post("/packages", h.Admin.CreatePackage)
			r.Get("/packages", h.Admin.ListPackages)
		})
	})

	logger.Debug("HTTP routes registered")
	return r
}
