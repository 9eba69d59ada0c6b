// Package planner turns a group's balance vector into a small set of
// transfers that settles everyone.
package planner

import (
	"errors"
	"fmt"
)

// ErrUnbalanced means the input balance vector does not sum to zero, so no
// plan can settle it. A ledger that honors its zero-sum invariant never
// produces such input.
var ErrUnbalanced = errors.New("balance vector does not sum to zero")

// Transfer is one planned payment: debtor pays creditor amount.
type Transfer struct {
	DebtorID   string `json:"debtor_id"`
	CreditorID string `json:"creditor_id"`
	Amount     int64  `json:"amount"`
}

type party struct {
	id     string
	amount int64 // remaining credit or debt magnitude, always positive
}

// largest returns the index of the party with the biggest remaining amount,
// breaking ties by lexicographically smallest id. The tie-break keeps the
// plan fully deterministic for a given balance vector instead of depending
// on map iteration order.
func largest(parties []party) int {
	best := -1
	for i, p := range parties {
		if p.amount == 0 {
			continue
		}
		if best < 0 || p.amount > parties[best].amount ||
			(p.amount == parties[best].amount && p.id < parties[best].id) {
			best = i
		}
	}
	return best
}

// ComputePlan computes a transfer plan that zeroes every balance in the
// input vector.
//
// Greedy netting: repeatedly match the creditor holding the largest
// remaining credit with the debtor holding the largest remaining debt and
// settle min(credit, debt). Each iteration zeroes at least one party, so
// the loop terminates after at most (#creditors + #debtors - 1) transfers.
//
// This is a heuristic: the plan is small and always settles, but it is not
// proven to be the globally minimal transfer count.
func ComputePlan(balances map[string]int64) ([]Transfer, error) {
	var creditors, debtors []party
	var sum int64
	for id, v := range balances {
		sum += v
		switch {
		case v > 0:
			creditors = append(creditors, party{id: id, amount: v})
		case v < 0:
			debtors = append(debtors, party{id: id, amount: -v})
		}
	}
	if sum != 0 {
		return nil, fmt.Errorf("%w: sum is %d", ErrUnbalanced, sum)
	}

	var plan []Transfer
	for {
		ci := largest(creditors)
		di := largest(debtors)
		if ci < 0 || di < 0 {
			break
		}
		creditor := &creditors[ci]
		debtor := &debtors[di]

		amount := creditor.amount
		if debtor.amount < amount {
			amount = debtor.amount
		}
		plan = append(plan, Transfer{
			DebtorID:   debtor.id,
			CreditorID: creditor.id,
			Amount:     amount,
		})
		creditor.amount -= amount
		debtor.amount -= amount
	}
	return plan, nil
}
