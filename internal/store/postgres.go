package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/redirect-engine/internal/shortener"
)

// PostgresStore is a PostgreSQL implementation of shortener.Repository.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed mapping store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) InsertIfAbsent(ctx context.Context, m *shortener.Mapping) error {
	query := `
		INSERT INTO mappings (code, target_url, owner, created_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO NOTHING
	`

	tag, err := p.pool.Exec(ctx, query,
		string(m.Code),
		m.TargetURL,
		m.Owner,
		m.CreatedAt,
		m.ExpiresAt,
		m.Active,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return shortener.ErrAlreadyExists
	}

	return nil
}

func (p *PostgresStore) Get(ctx context.Context, code shortener.Code) (*shortener.Mapping, error) {
	query := `
		SELECT code, target_url, owner, created_at, expires_at, is_active, click_count
		FROM mappings
		WHERE code = $1
	`

	var m shortener.Mapping

	err := p.pool.QueryRow(ctx, query, string(code)).Scan(
		&m.Code,
		&m.TargetURL,
		&m.Owner,
		&m.CreatedAt,
		&m.ExpiresAt,
		&m.Active,
		&m.ClickCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	return &m, nil
}

func (p *PostgresStore) Deactivate(ctx context.Context, code shortener.Code) error {
	tag, err := p.pool.Exec(ctx, `UPDATE mappings SET is_active = FALSE WHERE code = $1`, string(code))
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return shortener.ErrNotFound
	}

	return nil
}

func (p *PostgresStore) IncrementClickCount(ctx context.Context, code shortener.Code, delta int64) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE mappings SET click_count = click_count + $2 WHERE code = $1`,
		string(code), delta,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return shortener.ErrNotFound
	}

	return nil
}

// Ping checks connectivity for health reporting.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Shutdown closes the pool.
func (p *PostgresStore) Shutdown() error {
	p.pool.Close()

	return nil
}

var _ shortener.Repository = (*PostgresStore)(nil)
