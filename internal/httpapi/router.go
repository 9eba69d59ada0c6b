package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/splitstack/tally/internal/auth"
	"github.com/splitstack/tally/internal/metrics"
	"github.com/splitstack/tally/internal/middleware"
)

// NewRouter assembles the HTTP routes. Everything under /v1 except auth
// requires a valid session token.
func NewRouter(h *Handler, jwtManager *auth.JWTManager) http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Use(middleware.RequestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(jwtManager))

			r.Post("/groups", h.createGroup)
			r.Get("/groups", h.listGroups)
			r.Get("/groups/{groupID}", h.getGroup)

			r.Post("/groups/{groupID}/expenses", h.postExpense)
			r.Get("/groups/{groupID}/expenses", h.listExpenses)
			r.Get("/expenses/{expenseID}", h.getExpense)
			r.Post("/expenses/{expenseID}/settled", h.markExpenseSettled)

			r.Get("/groups/{groupID}/balances", h.groupBalances)
			r.Get("/groups/{groupID}/balances/{memberID}", h.memberBalance)
			r.Get("/groups/{groupID}/plan", h.settlementPlan)
			r.Post("/groups/{groupID}/recompute", h.recomputeBalances)

			r.Post("/wallet/deposit", h.walletDeposit)
			r.Get("/wallet", h.walletBalance)

			r.Post("/settlements", h.initiateSettlement)
			r.Get("/settlements", h.listMySettlements)
			r.Get("/settlements/{settlementID}", h.getSettlement)
			r.Post("/settlements/{settlementID}/execute", h.executeSettlement)
			r.Post("/settlements/{settlementID}/cancel", h.cancelSettlement)
			r.Delete("/settlements/{settlementID}", h.reclaimSettlement)
			r.Get("/groups/{groupID}/settlements", h.listSettlements)
		})
	})

	return r
}
