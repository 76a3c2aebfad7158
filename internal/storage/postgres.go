package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis-swing/internal/contracts"
)

// PostgresStore persists universes and positions with pgx
// ⭐ SSOT: 주간 유니버스/포지션 저장은 여기서만
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new postgres-backed store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// SaveUniverse upserts an unfrozen week.
// WHERE frozen = false 로 frozen 주간은 DB 레벨에서도 덮어쓰기 불가
func (s *PostgresStore) SaveUniverse(ctx context.Context, u *contracts.WeeklyUniverse) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal universe: %w", err)
	}

	query := `
		INSERT INTO weekly_universes (
			week_key, frozen, frozen_at, config_hash, run_id, payload, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (week_key) DO UPDATE SET
			frozen = EXCLUDED.frozen,
			frozen_at = EXCLUDED.frozen_at,
			config_hash = EXCLUDED.config_hash,
			run_id = EXCLUDED.run_id,
			payload = EXCLUDED.payload,
			updated_at = NOW()
		WHERE weekly_universes.frozen = false
	`

	tag, err := s.pool.Exec(ctx, query,
		string(u.WeekKey), u.Frozen, u.FrozenAt, u.ConfigHash, u.RunID, payload,
	)
	if err != nil {
		return contracts.DataUnavailable("save universe", err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.ImmutableStateViolation(u.WeekKey)
	}
	return nil
}

// LoadUniverse reads one week
func (s *PostgresStore) LoadUniverse(ctx context.Context, week contracts.WeekKey) (*contracts.WeeklyUniverse, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		"SELECT payload FROM weekly_universes WHERE week_key = $1",
		string(week),
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("universe %s: %w", week, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, contracts.DataUnavailable("load universe", err)
	}

	var u contracts.WeeklyUniverse
	if err := json.Unmarshal(payload, &u); err != nil {
		return nil, fmt.Errorf("failed to unmarshal universe %s: %w", week, err)
	}
	return &u, nil
}

// SavePosition upserts a position state
func (s *PostgresStore) SavePosition(ctx context.Context, p *contracts.Position) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}

	query := `
		INSERT INTO positions (
			id, symbol, strategy, status, entry_price, entry_time, quantity,
			high_water_mark, invalidation_reason, closed_at, payload, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			quantity = EXCLUDED.quantity,
			high_water_mark = EXCLUDED.high_water_mark,
			invalidation_reason = EXCLUDED.invalidation_reason,
			closed_at = EXCLUDED.closed_at,
			payload = EXCLUDED.payload,
			updated_at = NOW()
	`

	_, err = s.pool.Exec(ctx, query,
		p.ID, p.Symbol, string(p.Strategy), string(p.Status), p.EntryPrice, p.EntryTime,
		p.Quantity, p.HighWaterMark, string(p.InvalidationReason), p.ClosedAt, payload,
	)
	if err != nil {
		return contracts.DataUnavailable("save position", err)
	}
	return nil
}

// LoadOpenPositions reads OPEN and PENDING_CLOSE positions
func (s *PostgresStore) LoadOpenPositions(ctx context.Context) ([]*contracts.Position, error) {
	query := `
		SELECT payload
		FROM positions
		WHERE status IN ($1, $2)
		ORDER BY entry_time, id
	`

	rows, err := s.pool.Query(ctx, query, string(contracts.PositionOpen), string(contracts.PositionPendingClose))
	if err != nil {
		return nil, contracts.DataUnavailable("load positions", err)
	}
	return scanPositions(rows)
}

// LoadClosedSince reads CLOSED positions with closed_at >= since
func (s *PostgresStore) LoadClosedSince(ctx context.Context, since time.Time) ([]*contracts.Position, error) {
	query := `
		SELECT payload
		FROM positions
		WHERE status = $1 AND closed_at >= $2
		ORDER BY closed_at, id
	`

	rows, err := s.pool.Query(ctx, query, string(contracts.PositionClosed), since)
	if err != nil {
		return nil, contracts.DataUnavailable("load closed positions", err)
	}
	return scanPositions(rows)
}

func scanPositions(rows pgx.Rows) ([]*contracts.Position, error) {
	defer rows.Close()

	var out []*contracts.Position
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		var p contracts.Position
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal position: %w", err)
		}
		out = append(out, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
