package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accord-app/accord/internal/domain/dispute"
)

// CaseRepository implements dispute.CaseHistoryRepository.
type CaseRepository struct {
	pool *pgxpool.Pool
}

func NewCaseRepository(pool *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{pool: pool}
}

func (r *CaseRepository) InsertCase(ctx context.Context, record *dispute.CaseRecord) error {
	verdicts, err := json.Marshal(record.Verdicts)
	if err != nil {
		return fmt.Errorf("marshal verdicts: %w", err)
	}
	addendums, err := json.Marshal(record.Addendums)
	if err != nil {
		return fmt.Errorf("marshal addendums: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO dispute_cases
		(case_id, session_id, couple_id, creator_id, partner_id, verdicts, addendums, closed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, record.CaseID, record.SessionID, record.CoupleID, record.CreatorID, record.PartnerID, verdicts, addendums, record.ClosedAt)
	return err
}
