package postgres

import (
	"context"
	"encoding/json"

	"installments/internal/engine"
)

// RecordChange appends one audit row. Callers treat this as best-effort; the
// engine logs and swallows failures.
func (s *Store) RecordChange(ctx context.Context, entity, entityID, actorID string, diffs map[string]engine.FieldDiff, metadata map[string]any) error {
	var diffsJSON, metaJSON *string
	if diffs != nil {
		b, _ := json.Marshal(diffs)
		v := string(b)
		diffsJSON = &v
	}
	if metadata != nil {
		b, _ := json.Marshal(metadata)
		v := string(b)
		metaJSON = &v
	}
	const q = `
INSERT INTO audit_logs (entity, entity_id, actor, field_diffs, metadata)
VALUES ($1, $2, $3, CAST($4 AS jsonb), CAST($5 AS jsonb))
`
	_, err := s.q.Exec(ctx, q, entity, entityID, actorID, diffsJSON, metaJSON)
	return err
}
