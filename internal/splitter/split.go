// Package splitter computes exact integer splits of an expense amount.
package splitter

import (
	"errors"
	"fmt"
)

// MaxParticipants caps the split size to bound iteration cost.
const MaxParticipants = 100

var (
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrEmptyParticipants    = errors.New("must have at least one participant")
	ErrTooManyParticipants  = fmt.Errorf("too many participants (max %d)", MaxParticipants)
	ErrDuplicateParticipant = errors.New("duplicate participant")
)

// Share is one participant's computed share of an amount.
type Share struct {
	MemberID string
	Owed     int64
}

// Split divides amount across the participants in the given order.
//
// base = amount / n, remainder = amount % n; the first remainder
// participants receive base+1, the rest receive base. The shares always sum
// to amount exactly, with no floating point involved. The caller supplies
// the order (payer first by convention) and it must be stable, since it
// decides who absorbs the extra units.
func Split(amount int64, participants []string) ([]Share, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if len(participants) == 0 {
		return nil, ErrEmptyParticipants
	}
	if len(participants) > MaxParticipants {
		return nil, ErrTooManyParticipants
	}
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if seen[p] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParticipant, p)
		}
		seen[p] = true
	}

	n := int64(len(participants))
	base := amount / n
	remainder := amount % n

	shares := make([]Share, len(participants))
	for i, p := range participants {
		owed := base
		if int64(i) < remainder {
			owed++
		}
		shares[i] = Share{MemberID: p, Owed: owed}
	}
	return shares, nil
}
