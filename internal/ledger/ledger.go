// Package ledger maintains signed per-(group, member) balances with a
// closed-system guarantee: within a group, balances always sum to zero.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/splitstack/tally/internal/models"
	"github.com/splitstack/tally/internal/splitter"
)

// ErrLedgerCorruption means the zero-sum invariant broke or a balance
// breached the overflow ceiling after a mutation. This is a logic bug, not
// a user error: the operation must abort loudly and nothing should attempt
// to continue against the group.
var ErrLedgerCorruption = errors.New("ledger corruption")

// MembershipOracle answers whether a member belongs to a group. Group
// membership is owned by an external collaborator; the ledger only asks.
type MembershipOracle interface {
	IsMember(ctx context.Context, groupID, memberID string) (bool, error)
}

// CommitFunc persists the changed balances of a mutation. It runs under the
// group's lock so the in-memory and durable state cannot diverge under
// concurrent writers. The map values are encoded balances (see Encode).
// If it returns an error the in-memory mutation is rolled back.
type CommitFunc func(changed map[string]uint64) error

// Book is the in-memory balance book. Balances are held in their encoded
// unsigned form, the same representation the store persists, so the
// sign-crossing arithmetic is exercised on every mutation.
//
// Mutations on the same group are serialized by a per-group mutex;
// different groups proceed in parallel. Reads take a snapshot and never
// block writers across anything slow.
type Book struct {
	mu     sync.RWMutex
	groups map[string]*groupBook
}

type groupBook struct {
	mu       sync.Mutex
	balances map[string]uint64 // member id -> encoded balance
}

// NewBook creates an empty balance book.
func NewBook() *Book {
	return &Book{groups: make(map[string]*groupBook)}
}

func (b *Book) group(groupID string) *groupBook {
	b.mu.RLock()
	g, ok := b.groups[groupID]
	b.mu.RUnlock()
	if ok {
		return g
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if g, ok = b.groups[groupID]; ok {
		return g
	}
	g = &groupBook{balances: make(map[string]uint64)}
	b.groups[groupID] = g
	return g
}

// Load seeds a group's balances from storage, replacing whatever the book
// currently holds for that group. Called at startup and after a replay.
func (b *Book) Load(groupID string, balances map[string]uint64) error {
	g := b.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()

	loaded := make(map[string]uint64, len(balances))
	var sum int64
	for member, enc := range balances {
		v, err := Decode(enc)
		if err != nil {
			return fmt.Errorf("%w: member %s: %v", ErrLedgerCorruption, member, err)
		}
		sum += v
		loaded[member] = enc
	}
	if sum != 0 {
		return fmt.Errorf("%w: group %s loads with balance sum %d", ErrLedgerCorruption, groupID, sum)
	}
	g.balances = loaded
	return nil
}

// ApplyExpense posts an expense to the group: the payer is credited the
// full amount and every share is debited from its participant. Because the
// payer appears in the shares, the payer's net change is amount minus their
// own share and the group stays zero-sum. The sum is still asserted after
// the mutation, failing fast with ErrLedgerCorruption.
//
// commit, if non-nil, runs under the group lock with the touched members'
// new encoded balances; an error from it rolls the mutation back.
func (b *Book) ApplyExpense(groupID, payerID string, amount int64, shares []splitter.Share, commit CommitFunc) error {
	if amount <= 0 {
		return splitter.ErrInvalidAmount
	}
	g := b.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()

	// Work on copies of the touched entries so a failure leaves the book
	// untouched.
	touched := make(map[string]uint64, len(shares)+1)
	get := func(member string) uint64 {
		if enc, ok := touched[member]; ok {
			return enc
		}
		return g.balances[member]
	}

	enc, err := applyEncoded(get(payerID), amount, true)
	if err != nil {
		return fmt.Errorf("%w: crediting payer %s: %v", ErrLedgerCorruption, payerID, err)
	}
	touched[payerID] = enc

	for _, s := range shares {
		enc, err := applyEncoded(get(s.MemberID), s.Owed, false)
		if err != nil {
			return fmt.Errorf("%w: debiting %s: %v", ErrLedgerCorruption, s.MemberID, err)
		}
		touched[s.MemberID] = enc
	}

	// Zero-sum invariant check across the whole group with the mutation
	// applied.
	var sum int64
	for member := range g.balances {
		if _, ok := touched[member]; ok {
			continue
		}
		v, err := Decode(g.balances[member])
		if err != nil {
			return fmt.Errorf("%w: member %s: %v", ErrLedgerCorruption, member, err)
		}
		sum += v
	}
	for member, enc := range touched {
		v, err := Decode(enc)
		if err != nil {
			return fmt.Errorf("%w: member %s: %v", ErrLedgerCorruption, member, err)
		}
		sum += v
	}
	if sum != 0 {
		return fmt.Errorf("%w: group %s balance sum %d after expense", ErrLedgerCorruption, groupID, sum)
	}

	if commit != nil {
		if err := commit(touched); err != nil {
			return err
		}
	}
	for member, enc := range touched {
		g.balances[member] = enc
	}
	return nil
}

// Balance returns the signed balance for a member in a group. Members that
// never appeared are reported as zero. O(1); never replays history.
func (b *Book) Balance(groupID, memberID string) (int64, error) {
	b.mu.RLock()
	g, ok := b.groups[groupID]
	b.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	g.mu.Lock()
	enc, ok := g.balances[memberID]
	g.mu.Unlock()
	if !ok {
		return 0, nil
	}
	v, err := Decode(enc)
	if err != nil {
		return 0, fmt.Errorf("%w: member %s: %v", ErrLedgerCorruption, memberID, err)
	}
	return v, nil
}

// Snapshot returns a copy of the group's signed balances, omitting members
// that are exactly settled. This is the planner's input.
func (b *Book) Snapshot(groupID string) (map[string]int64, error) {
	b.mu.RLock()
	g, ok := b.groups[groupID]
	b.mu.RUnlock()
	if !ok {
		return map[string]int64{}, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]int64, len(g.balances))
	for member, enc := range g.balances {
		v, err := Decode(enc)
		if err != nil {
			return nil, fmt.Errorf("%w: member %s: %v", ErrLedgerCorruption, member, err)
		}
		if v != 0 {
			out[member] = v
		}
	}
	return out, nil
}

// Replay recomputes a group's balances from its full expense history.
// This is the recovery and audit path, never the hot path: the result can
// be compared against the incremental state or loaded back into the book.
func Replay(expenses []*models.Expense) (map[string]int64, error) {
	balances := make(map[string]int64)
	for _, e := range expenses {
		var distributed int64
		for _, s := range e.Splits {
			balances[s.MemberID] -= s.Owed
			distributed += s.Owed
		}
		if distributed != e.Amount {
			return nil, fmt.Errorf("%w: expense %s splits sum to %d, amount is %d",
				ErrLedgerCorruption, e.ID, distributed, e.Amount)
		}
		balances[e.PayerID] += e.Amount
	}
	var sum int64
	for _, v := range balances {
		sum += v
	}
	if sum != 0 {
		return nil, fmt.Errorf("%w: replayed balance sum %d", ErrLedgerCorruption, sum)
	}
	return balances, nil
}
