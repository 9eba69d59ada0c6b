package sqlite

import (
	"context"
	"fmt"

	"github.com/splitstack/tally/internal/ledger"
)

// SaveBalances upserts the given encoded balance slots for a group. Each
// slot is stored as the 8-byte big-endian form of the sign-bit encoding, so
// what the ledger holds in memory is byte for byte what sits on disk.
func (s *SQLiteStore) SaveBalances(ctx context.Context, groupID string, slots map[string]uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for memberID, slot := range slots {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO balances (group_id, member_id, slot) VALUES (?, ?, ?)
			 ON CONFLICT (group_id, member_id) DO UPDATE SET slot = excluded.slot`,
			groupID, memberID, ledger.EncodeBytes(slot),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LoadBalances reads every stored balance slot, keyed by group then member.
func (s *SQLiteStore) LoadBalances(ctx context.Context) (map[string]map[string]uint64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT group_id, member_id, slot FROM balances")
	if err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]map[string]uint64)
	for rows.Next() {
		var groupID, memberID string
		var raw []byte
		if err := rows.Scan(&groupID, &memberID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		slot, err := ledger.DecodeBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("balance slot for %s/%s: %w", groupID, memberID, err)
		}
		group, ok := balances[groupID]
		if !ok {
			group = make(map[string]uint64)
			balances[groupID] = group
		}
		group[memberID] = slot
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}

	return balances, nil
}
