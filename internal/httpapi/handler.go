// Package httpapi is the JSON HTTP adapter over the domain services.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/splitstack/tally/internal/metrics"
	"github.com/splitstack/tally/internal/middleware"
	"github.com/splitstack/tally/internal/service"
	"github.com/splitstack/tally/internal/settlement"
	"github.com/splitstack/tally/internal/transfer"
)

// Handler holds the services the HTTP layer dispatches to.
type Handler struct {
	auth        *service.AuthService
	groups      *service.GroupService
	ledger      *service.LedgerService
	settlements *service.SettlementService
	bank        *transfer.Bank
}

// NewHandler creates the HTTP handler set.
func NewHandler(auth *service.AuthService, groups *service.GroupService, ledger *service.LedgerService, settlements *service.SettlementService, bank *transfer.Bank) *Handler {
	return &Handler{
		auth:        auth,
		groups:      groups,
		ledger:      ledger,
		settlements: settlements,
		bank:        bank,
	}
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json body", service.ErrInvalidInput)
	}
	return nil
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	member, token, err := h.auth.Register(r.Context(), req.MemberID, req.Credential)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{MemberID: member.ID, Token: token})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	member, token, err := h.auth.Login(r.Context(), req.MemberID, req.Credential)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{MemberID: member.ID, Token: token})
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller := middleware.GetMemberID(r.Context())
	group, err := h.groups.CreateGroup(r.Context(), caller, req.Name, req.Members)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupResponse(group))
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetMemberID(r.Context())
	group, err := h.groups.GetGroup(r.Context(), caller, chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(group))
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetMemberID(r.Context())
	groups, err := h.groups.ListGroups(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, toGroupResponse(g))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) postExpense(w http.ResponseWriter, r *http.Request) {
	var req postExpenseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller := middleware.GetMemberID(r.Context())
	expense, err := h.ledger.PostExpense(r.Context(), caller, service.PostExpenseInput{
		GroupID:      chi.URLParam(r, "groupID"),
		Amount:       req.Amount,
		Participants: req.Participants,
		Note:         req.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.ExpensesPosted.Inc()
	writeJSON(w, http.StatusCreated, toExpenseResponse(expense))
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetMemberID(r.Context())
	expenses, err := h.ledger.ListExpenses(r.Context(), caller, chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		resp = append(resp, toExpenseResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getExpense(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetMemberID(r.Context())
	expense, err := h.ledger.GetExpense(r.Context(), caller, chi.URLParam(r, "expenseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (h *Handler) markExpenseSettled(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetMemberID(r.Context())
	expenseID := chi.URLParam(r, "expenseID")
	if err := h.ledger.MarkExpenseSettled(r.Context(), caller, expenseID); err != nil {
		writeError(w, err)
		return
	}
	expense, err := h.ledger.GetExpense(r.Context(), caller, expenseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (h *Handler) groupBalances(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetMemberID(r.Context())
	balances, err := h.ledger.GroupBalances(r.Context(), caller, chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (h *Handler) memberBalance(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetMemberID(r.Context())
	groupID := chi.URLParam(r, "groupID")
	memberID := chi.URLParam(r, "memberID")
	balance, err := h.ledger.GetBalance(r.Context(), caller, groupID, memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{GroupID: groupID, MemberID: memberID, Balance: balance})
}

func (h *Handler) settlementPlan(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetMemberID(r.Context())
	plan, err := h.ledger.SettlementPlan(r.Context(), caller, chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) recomputeBalances(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetMemberID(r.Context())
	groupID := chi.URLParam(r, "groupID")
	if _, err := h.groups.GetGroup(r.Context(), caller, groupID); err != nil {
		writeError(w, err)
		return
	}
	balances, err := h.ledger.RecomputeBalances(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (h *Handler) initiateSettlement(w http.ResponseWriter, r *http.Request) {
	var req initiateSettlementRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller := middleware.GetMemberID(r.Context())
	settled, err := h.settlements.Initiate(r.Context(), caller, settlement.InitiateInput{
		GroupID:    req.GroupID,
		ExpenseID:  req.ExpenseID,
		CreditorID: req.CreditorID,
		Amount:     req.Amount,
		Note:       req.Note,
		TTL:        time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSettlementResponse(settled))
}

func (h *Handler) getSettlement(w http.ResponseWriter, r *http.Request) {
	settled, err := h.settlements.Get(r.Context(), chi.URLParam(r, "settlementID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(settled))
}

func (h *Handler) executeSettlement(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetMemberID(r.Context())
	start := time.Now()
	executed, err := h.settlements.Execute(r.Context(), caller, chi.URLParam(r, "settlementID"))
	metrics.SettlementExecuteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SettlementsExecuted.WithLabelValues("failed").Inc()
		writeError(w, err)
		return
	}
	metrics.SettlementsExecuted.WithLabelValues("completed").Inc()
	writeJSON(w, http.StatusOK, toSettlementResponse(executed))
}

func (h *Handler) cancelSettlement(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetMemberID(r.Context())
	cancelled, err := h.settlements.Cancel(r.Context(), caller, chi.URLParam(r, "settlementID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(cancelled))
}

func (h *Handler) reclaimSettlement(w http.ResponseWriter, r *http.Request) {
	if err := h.settlements.Reclaim(r.Context(), chi.URLParam(r, "settlementID")); err != nil {
		writeError(w, err)
		return
	}
	metrics.SettlementsReclaimed.Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) walletDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Amount <= 0 {
		writeError(w, fmt.Errorf("%w: amount must be positive", service.ErrInvalidInput))
		return
	}
	caller := middleware.GetMemberID(r.Context())
	h.bank.Deposit(caller, req.Amount)
	writeJSON(w, http.StatusOK, walletResponse{MemberID: caller, Funds: h.bank.AccountBalance(caller)})
}

func (h *Handler) walletBalance(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetMemberID(r.Context())
	writeJSON(w, http.StatusOK, walletResponse{MemberID: caller, Funds: h.bank.AccountBalance(caller)})
}

func (h *Handler) listSettlements(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetMemberID(r.Context())
	settlements, err := h.settlements.ListByGroup(r.Context(), caller, chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponses(settlements))
}

func (h *Handler) listMySettlements(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetMemberID(r.Context())
	settlements, err := h.settlements.ListForMember(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponses(settlements))
}
