// Package storage persists telemetry to PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ai-orchestrator-go/internal/migrations"
	"ai-orchestrator-go/internal/telemetry"

	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

const defaultPGTimeout = 5 * time.Second

// PostgresStore implements telemetry.Store over lib/pq.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the database and verifies connectivity.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Info("Connected to PostgreSQL telemetry store")
	return &PostgresStore{db: db}, nil
}

// Initialize applies pending schema migrations.
func (p *PostgresStore) Initialize(ctx context.Context) error {
	if err := migrations.Apply(p.db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	log.Info("PostgreSQL migrations applied")
	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// Ping reports database reachability for the health endpoint.
func (p *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPGTimeout)
	defer cancel()
	var one int
	return p.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// PoolStats returns current connection pool statistics.
func (p *PostgresStore) PoolStats() (active int64, idle int64, misses int64) {
	if p == nil || p.db == nil {
		return 0, 0, 0
	}
	s := p.db.Stats()
	return int64(s.InUse), int64(s.Idle), int64(s.WaitCount)
}

// EnsureAPIKey registers a credential id if it is not already present.
// The insert races with other instances; ON CONFLICT makes it idempotent.
func (p *PostgresStore) EnsureAPIKey(ctx context.Context, keyID, provider string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPGTimeout)
	defer cancel()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_id, provider) VALUES ($1, $2)
		 ON CONFLICT (key_id) DO NOTHING`, keyID, provider)
	if err != nil {
		return fmt.Errorf("ensure api key: %w", err)
	}
	return nil
}

// EnsureModel registers a model name if it is not already present.
func (p *PostgresStore) EnsureModel(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPGTimeout)
	defer cancel()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO models (name) VALUES ($1)
		 ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("ensure model: %w", err)
	}
	return nil
}

// InsertRequest writes one telemetry row. Foreign keys resolve through
// subselects so the row stays consistent even if the in-process FK cache
// and the database disagree.
func (p *PostgresStore) InsertRequest(ctx context.Context, rec *telemetry.Record) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPGTimeout)
	defer cancel()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO requests (
			api_key_id, model_id, provider, action, method, path,
			client_ip, user_agent, status_code, latency_ms, attempt_count,
			is_error, error_detail, prompt_tokens, completion_tokens,
			total_tokens, request_body, response_body, request_size,
			response_size, body_truncated, created_at
		) VALUES (
			(SELECT id FROM api_keys WHERE key_id = $1),
			(SELECT id FROM models WHERE name = $2),
			$3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			NULLIF($13, ''), $14, $15, $16, $17, $18, $19, $20, $21, $22
		)`,
		rec.CredentialID, rec.Model, rec.Provider, rec.Action, rec.Method,
		rec.Path, rec.ClientIP, rec.UserAgent, rec.StatusCode, rec.LatencyMS,
		rec.AttemptCount, rec.IsError, rec.ErrorDetail, rec.PromptTokens,
		rec.CompletionTokens, rec.TotalTokens, rec.RequestBody,
		rec.ResponseBody, rec.RequestSize, rec.ResponseSize,
		rec.BodyTruncated, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert request record: %w", err)
	}
	return nil
}
