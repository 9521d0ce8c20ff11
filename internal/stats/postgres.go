package stats

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS player_stats (
	player TEXT PRIMARY KEY,
	moves  BIGINT NOT NULL DEFAULT 0,
	pairs  BIGINT NOT NULL DEFAULT 0,
	games  BIGINT NOT NULL DEFAULT 0,
	won    BIGINT NOT NULL DEFAULT 0,
	tied   BIGINT NOT NULL DEFAULT 0,
	lost   BIGINT NOT NULL DEFAULT 0
)`

// Postgres accumulates outcomes in a player_stats table: total moves, pairs
// and games alongside won/tied/lost counters per player.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres connects to the database and ensures the stats table exists.
func NewPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect stats database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping stats database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure stats schema: %w", err)
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

// RecordOutcome folds one game result into the player's cumulative row.
func (p *Postgres) RecordOutcome(ctx context.Context, outcome Outcome) error {
	won, tied, lost := 0, 0, 0
	switch outcome.Category {
	case Won:
		won = 1
	case Tied:
		tied = 1
	case Lost:
		lost = 1
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO player_stats (player, moves, pairs, games, won, tied, lost)
		VALUES ($1, $2, $3, 1, $4, $5, $6)
		ON CONFLICT (player) DO UPDATE SET
			moves = player_stats.moves + EXCLUDED.moves,
			pairs = player_stats.pairs + EXCLUDED.pairs,
			games = player_stats.games + 1,
			won   = player_stats.won + EXCLUDED.won,
			tied  = player_stats.tied + EXCLUDED.tied,
			lost  = player_stats.lost + EXCLUDED.lost`,
		outcome.Player, outcome.Moves, outcome.Pairs, won, tied, lost,
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	p.logger.Info("outcome recorded",
		zap.String("player", outcome.Player),
		zap.Int("moves", outcome.Moves),
		zap.Int("pairs", outcome.Pairs),
		zap.String("category", outcome.Category.String()),
	)
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
