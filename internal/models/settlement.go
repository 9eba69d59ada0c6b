package models

// SettlementState is the lifecycle state of a settlement.
// Transitions: Pending -> Completed, Pending -> Cancelled. There is no
// transition out of Completed or Cancelled. Expired Pending settlements
// stay Pending until reclaimed (deleted).
type SettlementState string

const (
	SettlementPending   SettlementState = "pending"
	SettlementCompleted SettlementState = "completed"
	SettlementCancelled SettlementState = "cancelled"
)

// Settlement is a tracked, time-boxed intent to transfer a specific amount
// from a debtor to a creditor, executed atomically at most once.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to ("" if standalone).
	GroupID string

	// ExpenseID optionally links the settlement to an expense
	// ("" if standalone).
	ExpenseID string

	// DebtorID is the member who owes and pays. Only the debtor may
	// initiate, execute, or cancel the settlement.
	DebtorID string

	// CreditorID is the member who receives the payment.
	CreditorID string

	// Amount is the settlement amount in smallest currency units. Positive.
	Amount int64

	// State is the current lifecycle state.
	State SettlementState

	// Note is an optional description (max 200 chars).
	Note string

	// CreatedAt is the Unix timestamp when the settlement was initiated.
	CreatedAt int64

	// ExpiresAt is the Unix timestamp after which a Pending settlement can
	// no longer be executed and becomes reclaimable.
	ExpiresAt int64

	// CompletedAt is the Unix timestamp of execution (0 while Pending).
	CompletedAt int64

	// TransferProof is the reference returned by the transfer primitive on
	// execution, kept for audit ("" while Pending).
	TransferProof string
}

// Expired reports whether the settlement's execution window has passed
// at the given Unix time.
func (s *Settlement) Expired(now int64) bool {
	return now > s.ExpiresAt
}
