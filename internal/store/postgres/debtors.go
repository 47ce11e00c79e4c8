package postgres

import (
	"context"
)

// DeleteDebtor clears the overdue marker for a contract. Confirmation always
// means "caught up" for the confirmed slot; the external recomputation job
// recreates markers for contracts that are still behind.
func (s *Store) DeleteDebtor(ctx context.Context, contractID string) error {
	const q = `DELETE FROM debtors WHERE contract_id = $1`
	_, err := s.q.Exec(ctx, q, contractID)
	return err
}
