package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"voice-room/internal/model"
)

// AgencyRepository handles host agency persistence.
type AgencyRepository struct {
	pool *pgxpool.Pool
}

// NewAgencyRepository creates a new AgencyRepository instance.
func NewAgencyRepository(pool *pgxpool.Pool) *AgencyRepository {
	return &AgencyRepository{pool: pool}
}

// Create registers an agency owned by agentID.
func (r *AgencyRepository) Create(ctx context.Context, id string, agentID int64) (*model.HostAgency, error) {
	const query = `
		INSERT INTO host_agencies (id, agent_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET agent_id = EXCLUDED.agent_id
		RETURNING id, agent_id, total_production, created_at
	`

	var a model.HostAgency
	err := r.pool.QueryRow(ctx, query, id, agentID).Scan(&a.ID, &a.AgentID, &a.TotalProduction, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create agency: %w", err)
	}
	return &a, nil
}

// GetByID retrieves an agency.
func (r *AgencyRepository) GetByID(ctx context.Context, id string) (*model.HostAgency, error) {
	const query = `SELECT id, agent_id, total_production, created_at FROM host_agencies WHERE id = $1`

	var a model.HostAgency
	err := r.pool.QueryRow(ctx, query, id).Scan(&a.ID, &a.AgentID, &a.TotalProduction, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAgencyNotFound
		}
		return nil, fmt.Errorf("failed to get agency: %w", err)
	}
	return &a, nil
}

// creditAgency adds production to an agency and commission to its agent.
// A missing agency is skipped; a missing agent wallet only loses the commission.
func creditAgency(ctx context.Context, q dbtx, c model.AgencyCredit) error {
	const production = `
		UPDATE host_agencies
		SET total_production = total_production + $2
		WHERE id = $1
		RETURNING agent_id
	`

	var agentID int64
	err := q.QueryRow(ctx, production, c.AgencyID, c.Production).Scan(&agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("failed to credit agency: %w", err)
	}

	const commission = `UPDATE wallets SET diamonds = diamonds + $2, updated_at = NOW() WHERE id = $1`
	if _, err := q.Exec(ctx, commission, agentID, c.Commission); err != nil {
		return fmt.Errorf("failed to credit agent: %w", err)
	}
	return nil
}
