package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"stagesmart/internal/domain"
)

// GenerationPG persists one row per staging attempt.
type GenerationPG struct {
	pool *pgxpool.Pool
}

func NewGeneration(pool *pgxpool.Pool) *GenerationPG {
	return &GenerationPG{pool: pool}
}

// Record stores the attempt boundary; generated bytes are never persisted.
func (r *GenerationPG) Record(ctx context.Context, gen domain.Generation) error {
	query := `
INSERT INTO generations (id, owner_id, prompt, room, mode, engine, succeeded, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW());
`
	_, err := r.pool.Exec(ctx, query,
		gen.ID,
		gen.OwnerID,
		gen.Prompt,
		string(gen.Room),
		gen.Mode,
		gen.Engine,
		gen.Succeeded,
	)
	if err != nil {
		return fmt.Errorf("record generation: %w", err)
	}
	return nil
}

// ListByOwner returns the owner's staging history, newest first.
func (r *GenerationPG) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Generation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
SELECT id, owner_id, prompt, room, mode, engine, succeeded, created_at
FROM generations
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var items []domain.Generation
	for rows.Next() {
		var gen domain.Generation
		var room string
		if err := rows.Scan(&gen.ID, &gen.OwnerID, &gen.Prompt, &room, &gen.Mode, &gen.Engine, &gen.Succeeded, &gen.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		gen.Room = domain.RoomLabel(room)
		items = append(items, gen)
	}
	return items, rows.Err()
}
