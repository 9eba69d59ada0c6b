package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/splitstack/tally/internal/auth"
	"github.com/splitstack/tally/internal/ledger"
	"github.com/splitstack/tally/internal/service"
	"github.com/splitstack/tally/internal/settlement"
	"github.com/splitstack/tally/internal/storage"
	"github.com/splitstack/tally/internal/storage/sqlite"
	"github.com/splitstack/tally/internal/transfer"
)

// testServer wires the full stack against a temp-dir sqlite database.
type testServer struct {
	*httptest.Server
	t    *testing.T
	bank *transfer.Bank
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	bank := transfer.NewBank()
	machine := settlement.NewMachine(storage.SettlementStore{Store: store}, bank)

	groups := service.NewGroupService(store, logger)
	ledgerSvc := service.NewLedgerService(store, ledger.NewBook(), groups, logger)
	settlements := service.NewSettlementService(machine, store, groups, logger)
	authSvc := service.NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, logger)

	handler := NewHandler(authSvc, groups, ledgerSvc, settlements, bank)
	srv := httptest.NewServer(NewRouter(handler, jwtManager))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, t: t, bank: bank}
}

// do sends a JSON request and decodes the response into out (if non-nil),
// failing the test unless the status matches.
func (s *testServer) do(method, path, token string, body, out interface{}, wantStatus int) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		s.t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		s.t.Fatalf("%s %s = %d, want %d; body: %s", method, path, resp.StatusCode, wantStatus, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			s.t.Fatalf("decoding %s %s response: %v; body: %s", method, path, err, raw)
		}
	}
}

func (s *testServer) register(memberID string) string {
	s.t.Helper()
	var resp authResponse
	s.do(http.MethodPost, "/v1/auth/register", "",
		registerRequest{MemberID: memberID, Credential: "long-enough-secret"},
		&resp, http.StatusCreated)
	return resp.Token
}

func TestEndToEndExpenseAndSettlement(t *testing.T) {
	srv := newTestServer(t)

	alice := srv.register("alice")
	bob := srv.register("bob")
	carol := srv.register("carol")

	var group groupResponse
	srv.do(http.MethodPost, "/v1/groups", alice,
		createGroupRequest{Name: "Trip", Members: []string{"alice", "bob", "carol"}},
		&group, http.StatusCreated)

	// Alice fronts 150 for everyone: 50 each.
	var expense expenseResponse
	srv.do(http.MethodPost, "/v1/groups/"+group.ID+"/expenses", alice,
		postExpenseRequest{Amount: 150, Participants: []string{"alice", "bob", "carol"}, Note: "hotel"},
		&expense, http.StatusCreated)
	if len(expense.Splits) != 3 || expense.Splits[0].Owed != 50 {
		t.Fatalf("splits = %+v", expense.Splits)
	}

	var balances map[string]int64
	srv.do(http.MethodGet, "/v1/groups/"+group.ID+"/balances", bob, nil, &balances, http.StatusOK)
	if balances["alice"] != 100 || balances["bob"] != -50 || balances["carol"] != -50 {
		t.Fatalf("balances = %v", balances)
	}

	// The plan should tell both debtors to pay alice 50.
	var plan []struct {
		DebtorID   string `json:"debtor_id"`
		CreditorID string `json:"creditor_id"`
		Amount     int64  `json:"amount"`
	}
	srv.do(http.MethodGet, "/v1/groups/"+group.ID+"/plan", alice, nil, &plan, http.StatusOK)
	if len(plan) != 2 {
		t.Fatalf("plan = %+v", plan)
	}
	for _, tr := range plan {
		if tr.CreditorID != "alice" || tr.Amount != 50 {
			t.Errorf("transfer = %+v", tr)
		}
	}

	// Bob funds his wallet and settles his 50.
	srv.do(http.MethodPost, "/v1/wallet/deposit", bob, depositRequest{Amount: 75}, nil, http.StatusOK)
	var settled settlementResponse
	srv.do(http.MethodPost, "/v1/settlements", bob,
		initiateSettlementRequest{GroupID: group.ID, CreditorID: "alice", Amount: 50},
		&settled, http.StatusCreated)

	// Only the debtor may execute.
	srv.do(http.MethodPost, "/v1/settlements/"+settled.ID+"/execute", carol, nil, nil, http.StatusForbidden)

	var executed settlementResponse
	srv.do(http.MethodPost, "/v1/settlements/"+settled.ID+"/execute", bob, nil, &executed, http.StatusOK)
	if executed.State != "completed" || executed.TransferProof == "" {
		t.Fatalf("executed = %+v", executed)
	}
	if got := srv.bank.AccountBalance("alice"); got != 50 {
		t.Fatalf("alice wallet = %d, want 50", got)
	}

	// Second execute conflicts and pays nothing.
	srv.do(http.MethodPost, "/v1/settlements/"+settled.ID+"/execute", bob, nil, nil, http.StatusConflict)
	if got := srv.bank.AccountBalance("alice"); got != 50 {
		t.Fatalf("alice wallet after retry = %d, want 50", got)
	}
}

func TestAuthIsRequired(t *testing.T) {
	srv := newTestServer(t)
	srv.do(http.MethodGet, "/v1/groups", "", nil, nil, http.StatusUnauthorized)
	srv.do(http.MethodGet, "/v1/groups", "not-a-token", nil, nil, http.StatusUnauthorized)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.register("alice")
	bob := srv.register("bob")

	var group groupResponse
	srv.do(http.MethodPost, "/v1/groups", alice,
		createGroupRequest{Name: "Flat", Members: []string{"alice", "bob"}},
		&group, http.StatusCreated)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       interface{}
		wantStatus int
	}{
		{
			name:   "zero amount expense",
			method: http.MethodPost, path: "/v1/groups/" + group.ID + "/expenses",
			token:      alice,
			body:       postExpenseRequest{Amount: 0, Participants: []string{"alice", "bob"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "payer missing from participants",
			method: http.MethodPost, path: "/v1/groups/" + group.ID + "/expenses",
			token:      alice,
			body:       postExpenseRequest{Amount: 100, Participants: []string{"bob"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "unknown group",
			method: http.MethodGet, path: "/v1/groups/no-such-group",
			token:      alice,
			wantStatus: http.StatusNotFound,
		},
		{
			name:   "self settlement",
			method: http.MethodPost, path: "/v1/settlements",
			token:      bob,
			body:       initiateSettlementRequest{CreditorID: "bob", Amount: 10},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "duplicate registration",
			method: http.MethodPost, path: "/v1/auth/register",
			body:       registerRequest{MemberID: "alice", Credential: "long-enough-secret"},
			wantStatus: http.StatusConflict,
		},
		{
			name:   "execute without funds",
			method: http.MethodPost, path: "/v1/settlements/%s/execute",
			token:      bob,
			wantStatus: http.StatusConflict,
		},
	}

	// The last case needs a real settlement id.
	var unfunded settlementResponse
	srv.do(http.MethodPost, "/v1/settlements", bob,
		initiateSettlementRequest{GroupID: group.ID, CreditorID: "alice", Amount: 10},
		&unfunded, http.StatusCreated)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if tt.name == "execute without funds" {
				path = fmt.Sprintf(tt.path, unfunded.ID)
			}
			srv.do(tt.method, path, tt.token, tt.body, nil, tt.wantStatus)
		})
	}
}
