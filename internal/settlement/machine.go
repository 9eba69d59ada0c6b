// Package settlement tracks time-boxed settlement intents and executes
// them atomically, exactly once, against the transfer primitive.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/splitstack/tally/internal/models"
	"github.com/splitstack/tally/internal/transfer"
)

const (
	// DefaultTTL bounds how long a settlement stays executable.
	DefaultTTL = 24 * time.Hour

	// MaxNoteLength caps the optional settlement note.
	MaxNoteLength = 200
)

var (
	ErrNotFound         = errors.New("settlement not found")
	ErrAlreadyExecuted  = errors.New("settlement already executed")
	ErrCancelled        = errors.New("settlement cancelled")
	ErrExpired          = errors.New("settlement expired")
	ErrNotExpired       = errors.New("settlement not expired yet")
	ErrNotPending       = errors.New("settlement is not pending")
	ErrNotAuthorized    = errors.New("caller is not the settlement debtor")
	ErrTransferMismatch = errors.New("transfer does not match settlement record")
	ErrValidation       = errors.New("invalid settlement")
)

// Store is the durable settlement record store. State transitions are
// compare-and-set: Complete, Cancel, and DeletePending succeed only while
// the record is still Pending, and return ErrNotPending otherwise, so a
// second concurrent transition observes the change and fails cleanly.
type Store interface {
	Create(ctx context.Context, s *models.Settlement) error
	Get(ctx context.Context, id string) (*models.Settlement, error)

	// Complete flips Pending -> Completed, recording the transfer proof
	// and completion time.
	Complete(ctx context.Context, id, proof string, completedAt int64) error

	// Cancel flips Pending -> Cancelled.
	Cancel(ctx context.Context, id string) error

	// DeletePending physically removes a record that is still Pending.
	DeletePending(ctx context.Context, id string) error
}

// InitiateInput carries the parameters of a new settlement intent.
type InitiateInput struct {
	GroupID    string
	ExpenseID  string
	CreditorID string
	Amount     int64
	Note       string
	TTL        time.Duration
}

// Machine is the settlement state machine. It owns the only legal
// transitions out of Pending and guarantees each settlement executes at
// most once, with the value transfer and the state flip bundled into one
// atomic unit by the transfer primitive.
type Machine struct {
	store     Store
	primitive transfer.Primitive

	// now is injectable for expiry tests.
	now func() int64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMachine creates a settlement machine over the given store and
// transfer primitive.
func NewMachine(store Store, primitive transfer.Primitive) *Machine {
	return &Machine{
		store:     store,
		primitive: primitive,
		now:       func() int64 { return time.Now().Unix() },
		locks:     make(map[string]*sync.Mutex),
	}
}

// lock returns the mutex serializing transitions for one settlement id.
// The transfer wait itself happens outside any shared lock; only callers
// racing on the same settlement contend here.
func (m *Machine) lock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

func (m *Machine) forget(id string) {
	m.mu.Lock()
	delete(m.locks, id)
	m.mu.Unlock()
}

// Initiate creates a Pending settlement. Only the debtor may create their
// own obligation record, so caller must equal debtor.
func (m *Machine) Initiate(ctx context.Context, caller, debtor string, in InitiateInput) (*models.Settlement, error) {
	if caller != debtor {
		return nil, ErrNotAuthorized
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if debtor == in.CreditorID {
		return nil, fmt.Errorf("%w: debtor and creditor must be different", ErrValidation)
	}
	if in.CreditorID == "" {
		return nil, fmt.Errorf("%w: creditor required", ErrValidation)
	}
	if len(in.Note) > MaxNoteLength {
		return nil, fmt.Errorf("%w: note too long (max %d chars)", ErrValidation, MaxNoteLength)
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := m.now()
	s := &models.Settlement{
		ID:         uuid.New().String(),
		GroupID:    in.GroupID,
		ExpenseID:  in.ExpenseID,
		DebtorID:   debtor,
		CreditorID: in.CreditorID,
		Amount:     in.Amount,
		State:      models.SettlementPending,
		Note:       in.Note,
		CreatedAt:  now,
		ExpiresAt:  now + int64(ttl/time.Second),
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create settlement: %w", err)
	}
	return s, nil
}

// Execute performs the settlement: the debtor's payment to the creditor
// and the Pending -> Completed flip happen as one atomic unit inside the
// transfer primitive. A second call returns ErrAlreadyExecuted without
// moving any value. If the call times out while waiting on the primitive
// the record stays Pending and Execute can be retried: the retry first
// asks the primitive whether the transfer already confirmed.
func (m *Machine) Execute(ctx context.Context, caller, id string) (*models.Settlement, error) {
	l := m.lock(id)
	l.Lock()
	defer l.Unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := stateError(s); err != nil {
		return nil, err
	}
	if caller != s.DebtorID {
		return nil, ErrNotAuthorized
	}
	if s.Expired(m.now()) {
		// Expired settlements stay Pending; they are reclaimable, never
		// executable.
		return nil, ErrExpired
	}

	// Idempotent retry: if an earlier attempt's transfer confirmed after
	// we stopped waiting, finish the state flip instead of paying again.
	if proof, ok, err := m.primitive.Confirmed(ctx, s.ID); err != nil {
		return nil, fmt.Errorf("failed to check transfer confirmation: %w", err)
	} else if ok {
		if err := verifyProof(s, proof); err != nil {
			return nil, err
		}
		if err := m.store.Complete(ctx, s.ID, proof.TxnID, m.now()); err != nil && !errors.Is(err, ErrNotPending) {
			return nil, fmt.Errorf("failed to record confirmed transfer: %w", err)
		}
		return m.store.Get(ctx, id)
	}

	req := transfer.Request{
		Ref:    s.ID,
		From:   s.DebtorID,
		To:     s.CreditorID,
		Amount: s.Amount,
	}
	_, err = m.primitive.Transfer(ctx, req, func(proof transfer.Proof) error {
		// Verify the bundled transfer before committing: sender, receiver
		// and amount must match the record exactly.
		if err := verifyProof(s, proof); err != nil {
			return err
		}
		return m.store.Complete(ctx, s.ID, proof.TxnID, m.now())
	})
	if err != nil {
		if errors.Is(err, ErrNotPending) {
			// Lost the race to another transition; report what won.
			if cur, getErr := m.store.Get(ctx, id); getErr == nil {
				if stateErr := stateError(cur); stateErr != nil {
					return nil, stateErr
				}
			}
		}
		return nil, err
	}

	return m.store.Get(ctx, id)
}

// Cancel abandons a Pending settlement. Debtor only.
func (m *Machine) Cancel(ctx context.Context, caller, id string) (*models.Settlement, error) {
	l := m.lock(id)
	l.Lock()
	defer l.Unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := stateError(s); err != nil {
		return nil, err
	}
	if caller != s.DebtorID {
		return nil, ErrNotAuthorized
	}
	if err := m.store.Cancel(ctx, id); err != nil {
		if errors.Is(err, ErrNotPending) {
			if cur, getErr := m.store.Get(ctx, id); getErr == nil {
				if stateErr := stateError(cur); stateErr != nil {
					return nil, stateErr
				}
			}
		}
		return nil, err
	}
	return m.store.Get(ctx, id)
}

// Reclaim deletes an expired, never-executed settlement to free storage.
// Anyone may call it. Completed records are a permanent audit trail and
// can never be reclaimed.
func (m *Machine) Reclaim(ctx context.Context, id string) error {
	l := m.lock(id)
	l.Lock()
	defer l.Unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := stateError(s); err != nil {
		return err
	}
	if !s.Expired(m.now()) {
		return ErrNotExpired
	}
	if err := m.store.DeletePending(ctx, id); err != nil {
		return err
	}
	m.forget(id)
	return nil
}

// Get returns the settlement record.
func (m *Machine) Get(ctx context.Context, id string) (*models.Settlement, error) {
	return m.store.Get(ctx, id)
}

// stateError maps a non-Pending state to its caller-facing error.
func stateError(s *models.Settlement) error {
	switch s.State {
	case models.SettlementCompleted:
		return ErrAlreadyExecuted
	case models.SettlementCancelled:
		return ErrCancelled
	default:
		return nil
	}
}

// verifyProof checks the transfer's parties and amount against the record.
// A mismatch aborts the execute with no state change.
func verifyProof(s *models.Settlement, proof transfer.Proof) error {
	if proof.From != s.DebtorID || proof.To != s.CreditorID || proof.Amount != s.Amount {
		return fmt.Errorf("%w: transfer %s->%s amount %d, settlement %s->%s amount %d",
			ErrTransferMismatch,
			proof.From, proof.To, proof.Amount,
			s.DebtorID, s.CreditorID, s.Amount)
	}
	return nil
}
