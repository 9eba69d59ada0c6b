// Package transfer defines the atomic value-transfer primitive the
// settlement core executes against, plus an in-process implementation.
package transfer

import "context"

// Request describes one value transfer. Ref is the caller's idempotency
// reference (the settlement id): the provider tracks completed transfers by
// Ref so a retry can discover an earlier success instead of paying twice.
type Request struct {
	Ref    string
	From   string
	To     string
	Amount int64
}

// Proof is the provider's receipt for a completed transfer. The settlement
// record keeps TxnID for audit; From, To, and Amount are echoed back so the
// caller can verify the transfer that actually happened matches the one it
// asked for.
type Proof struct {
	Ref         string
	TxnID       string
	From        string
	To          string
	Amount      int64
	ConfirmedAt int64
}

// CommitFunc is the caller's state commit, run by the provider inside the
// same indivisible unit of work as the value move. If it returns an error
// the transfer is rolled back and has no effect.
type CommitFunc func(Proof) error

// Primitive is the atomic transfer-and-acknowledge contract. Providers
// guarantee all-or-nothing semantics between the value move and the paired
// commit; the caller must never assume success before Transfer returns.
type Primitive interface {
	// Transfer moves req.Amount from req.From to req.To and runs commit
	// within the same atomic unit. Either both take effect or neither does.
	Transfer(ctx context.Context, req Request, commit CommitFunc) (Proof, error)

	// Confirmed reports whether a transfer with the given idempotency ref
	// already completed, returning its proof if so. Used by callers to
	// retry safely after a timeout.
	Confirmed(ctx context.Context, ref string) (Proof, bool, error)
}
