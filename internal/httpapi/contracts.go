package httpapi

import (
	"github.com/splitstack/tally/internal/models"
)

type registerRequest struct {
	MemberID   string `json:"member_id"`
	Credential string `json:"credential"`
}

type authResponse struct {
	MemberID string `json:"member_id"`
	Token    string `json:"token"`
}

type createGroupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type groupResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	CreatedAt int64    `json:"created_at"`
}

func toGroupResponse(g *models.Group) groupResponse {
	return groupResponse{
		ID:        g.ID,
		Name:      g.Name,
		Members:   g.Members,
		CreatedAt: g.CreatedAt,
	}
}

type postExpenseRequest struct {
	Amount       int64    `json:"amount"`
	Participants []string `json:"participants"`
	Note         string   `json:"note,omitempty"`
}

type splitResponse struct {
	MemberID string `json:"member_id"`
	Owed     int64  `json:"owed"`
}

type expenseResponse struct {
	ID           string          `json:"id"`
	GroupID      string          `json:"group_id"`
	PayerID      string          `json:"payer_id"`
	Amount       int64           `json:"amount"`
	Participants []string        `json:"participants"`
	Splits       []splitResponse `json:"splits"`
	Note         string          `json:"note,omitempty"`
	Settled      bool            `json:"settled"`
	CreatedAt    int64           `json:"created_at"`
}

func toExpenseResponse(e *models.Expense) expenseResponse {
	resp := expenseResponse{
		ID:           e.ID,
		GroupID:      e.GroupID,
		PayerID:      e.PayerID,
		Amount:       e.Amount,
		Participants: e.Participants,
		Note:         e.Note,
		Settled:      e.Settled,
		CreatedAt:    e.CreatedAt,
	}
	for _, s := range e.Splits {
		resp.Splits = append(resp.Splits, splitResponse{MemberID: s.MemberID, Owed: s.Owed})
	}
	return resp
}

type balanceResponse struct {
	GroupID  string `json:"group_id"`
	MemberID string `json:"member_id"`
	Balance  int64  `json:"balance"`
}

type depositRequest struct {
	Amount int64 `json:"amount"`
}

type walletResponse struct {
	MemberID string `json:"member_id"`
	Funds    int64  `json:"funds"`
}

type initiateSettlementRequest struct {
	GroupID    string `json:"group_id,omitempty"`
	ExpenseID  string `json:"expense_id,omitempty"`
	CreditorID string `json:"creditor_id"`
	Amount     int64  `json:"amount"`
	Note       string `json:"note,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

type settlementResponse struct {
	ID            string `json:"id"`
	GroupID       string `json:"group_id,omitempty"`
	ExpenseID     string `json:"expense_id,omitempty"`
	DebtorID      string `json:"debtor_id"`
	CreditorID    string `json:"creditor_id"`
	Amount        int64  `json:"amount"`
	State         string `json:"state"`
	Note          string `json:"note,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	ExpiresAt     int64  `json:"expires_at"`
	CompletedAt   int64  `json:"completed_at,omitempty"`
	TransferProof string `json:"transfer_proof,omitempty"`
}

func toSettlementResponses(settlements []*models.Settlement) []settlementResponse {
	resp := make([]settlementResponse, 0, len(settlements))
	for _, s := range settlements {
		resp = append(resp, toSettlementResponse(s))
	}
	return resp
}

func toSettlementResponse(s *models.Settlement) settlementResponse {
	return settlementResponse{
		ID:            s.ID,
		GroupID:       s.GroupID,
		ExpenseID:     s.ExpenseID,
		DebtorID:      s.DebtorID,
		CreditorID:    s.CreditorID,
		Amount:        s.Amount,
		State:         string(s.State),
		Note:          s.Note,
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
		CompletedAt:   s.CompletedAt,
		TransferProof: s.TransferProof,
	}
}
