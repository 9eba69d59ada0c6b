package models

// Expense represents a shared expense posted to a group. Immutable once
// posted: the amount and participant set are fixed forever. Settlement only
// flips the Settled marker; it never rewrites balances or splits.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group this expense belongs to.
	GroupID string

	// PayerID is the member who paid the full amount up front.
	// The payer is always one of the participants.
	PayerID string

	// Amount is the total expense amount in smallest currency units.
	// Always positive.
	Amount int64

	// Participants is the ordered list of member ids splitting the
	// expense, payer first. The order decides who absorbs the remainder
	// units of an uneven split, so it must be stable.
	Participants []string

	// Splits is each participant's exact share. sum(Splits.Owed) == Amount.
	Splits []Split

	// Note is an optional description (max 100 chars).
	Note string

	// Settled marks the expense as settled. Owned by the caller; purely
	// informational for the ledger.
	Settled bool

	// CreatedAt is the Unix timestamp when the expense was posted.
	CreatedAt int64
}

// Split is one participant's exact integer share of an expense.
type Split struct {
	// ExpenseID is the expense this split belongs to.
	ExpenseID string

	// MemberID is the participant who owes this share.
	MemberID string

	// Owed is the share amount in smallest currency units. Positive.
	Owed int64
}
