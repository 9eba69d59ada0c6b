// Package models defines the core domain models for Tally.
//
// # Money
//
// All amounts are int64 values in the smallest currency unit. There is no
// floating point anywhere in the ledger: splits are computed with integer
// division and explicit remainder distribution, so the sum of the splits of
// an expense always reconstructs the expense amount exactly.
//
// # Model Lifecycles
//
//   - Expense and Split are written once and never updated or deleted. The
//     only mutable bit is the Settled marker, which is owned by the caller
//     and has no effect on balances.
//   - Balance is derived state, keyed by (group, member). It is updated
//     incrementally on every posted expense and can be rebuilt by replaying
//     the group's expense history.
//   - Settlement is created Pending and moves through its state machine
//     exactly once. Completed settlements are permanent audit records;
//     only expired Pending settlements may be physically removed.
//
// # Design Principles
//
//  1. Members are opaque ids (wallet-style strings). No names, emails, or
//     profile data are tracked here.
//  2. Relationships use id strings instead of pointers to avoid circular
//     references.
//  3. Models carry no behavior beyond small pure helpers; the ledger,
//     planner, and settlement packages own the semantics.
package models
