package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownAccount    = errors.New("unknown account")
)

// Bank is an in-process Primitive backed by a mutex-guarded account table.
// A transfer and its paired commit run under the same lock, so they are one
// indivisible unit: a commit failure rolls the balance movement back before
// anything else can observe it.
type Bank struct {
	mu       sync.Mutex
	accounts map[string]int64
	byRef    map[string]Proof // completed transfers by idempotency ref
}

var _ Primitive = (*Bank)(nil)

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{
		accounts: make(map[string]int64),
		byRef:    make(map[string]Proof),
	}
}

// Deposit funds an account. Used to seed balances.
func (b *Bank) Deposit(account string, amount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[account] += amount
}

// AccountBalance returns the current funds of an account.
func (b *Bank) AccountBalance(account string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts[account]
}

// Transfer implements Primitive.
func (b *Bank) Transfer(ctx context.Context, req Request, commit CommitFunc) (Proof, error) {
	if err := ctx.Err(); err != nil {
		return Proof{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// A transfer with this ref already went through; never pay twice.
	if proof, ok := b.byRef[req.Ref]; ok {
		return Proof{}, fmt.Errorf("transfer %s already confirmed as %s", req.Ref, proof.TxnID)
	}

	from, ok := b.accounts[req.From]
	if !ok {
		return Proof{}, fmt.Errorf("%w: %s", ErrUnknownAccount, req.From)
	}
	if from < req.Amount {
		return Proof{}, fmt.Errorf("%w: account %s has %d, needs %d",
			ErrInsufficientFunds, req.From, from, req.Amount)
	}

	b.accounts[req.From] -= req.Amount
	b.accounts[req.To] += req.Amount

	proof := Proof{
		Ref:         req.Ref,
		TxnID:       uuid.New().String(),
		From:        req.From,
		To:          req.To,
		Amount:      req.Amount,
		ConfirmedAt: time.Now().Unix(),
	}

	if commit != nil {
		if err := commit(proof); err != nil {
			// All or nothing: undo the value move.
			b.accounts[req.From] += req.Amount
			b.accounts[req.To] -= req.Amount
			return Proof{}, err
		}
	}

	b.byRef[req.Ref] = proof
	return proof, nil
}

// Confirmed implements Primitive.
func (b *Bank) Confirmed(ctx context.Context, ref string) (Proof, bool, error) {
	if err := ctx.Err(); err != nil {
		return Proof{}, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	proof, ok := b.byRef[ref]
	return proof, ok, nil
}
