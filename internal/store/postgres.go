package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-qualifier/internal/db"
	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	dsn     string
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgInsertLead = `INSERT INTO leads
		(lead_id, company_name, status, score, confidence, processing_time_seconds, created_at, updated_at, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	pgGetLead        = `SELECT data FROM leads WHERE lead_id = $1`
	pgLockLead       = `SELECT data FROM leads WHERE lead_id = $1 FOR UPDATE`
	pgUpdateLead     = `UPDATE leads SET company_name = $1, status = $2, score = $3, confidence = $4, processing_time_seconds = $5, updated_at = $6, data = $7 WHERE lead_id = $8`
	pgSaveCheckpoint = `INSERT INTO checkpoints (run_id, state, payload, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (run_id) DO NOTHING`
	pgLoadCheckpoint = `SELECT run_id, state, payload, created_at FROM checkpoints WHERE run_id = $1`
	pgInsertEmail    = `INSERT INTO email_logs (lead_id, to_email, subject, body, status, error, sent_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
)

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"insert_lead":     pgInsertLead,
	"get_lead":        pgGetLead,
	"lock_lead":       pgLockLead,
	"update_lead":     pgUpdateLead,
	"save_checkpoint": pgSaveCheckpoint,
	"load_checkpoint": pgLoadCheckpoint,
	"insert_email":    pgInsertEmail,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, dsn: connString, closeFn: pool.Close}, nil
}

// Pool returns the underlying pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// Migrate applies the embedded migrations with golang-migrate.
func (s *PostgresStore) Migrate(_ context.Context) error {
	if s.dsn == "" {
		return eris.New("postgres: migrate: no connection string")
	}
	return MigrateUp(s.dsn)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Leads ---

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	if lead == nil {
		return nil, eris.New("postgres: create lead: nil lead")
	}
	l := prepareLead(lead, time.Now().UTC())
	args, err := leadArgs(l)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create lead")
	}
	if _, err := s.pool.Exec(ctx, pgInsertLead, args...); err != nil {
		return nil, eris.Wrapf(err, "postgres: insert lead %s", l.LeadID)
	}
	return l, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	l, err := scanPgLead(s.pool.QueryRow(ctx, pgGetLead, id))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return l, nil
}

// UpdateLead locks the row, merges delta and writes it back.
func (s *PostgresStore) UpdateLead(ctx context.Context, id string, delta *model.LeadDelta) (*model.Lead, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin update lead")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	l, err := scanPgLead(tx.QueryRow(ctx, pgLockLead, id))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: lock lead %s", id)
	}
	if l == nil {
		return nil, nil
	}

	delta.Apply(l)
	l.LeadID = id
	l.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(l)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: marshal lead %s", id)
	}
	if _, err := tx.Exec(ctx, pgUpdateLead,
		l.CompanyName, string(l.Status), l.Score, l.Confidence,
		l.ProcessingTimeSeconds, l.UpdatedAt, data, id,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: update lead %s", id)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit update lead")
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT data FROM leads WHERE 1=1`
	var args []any
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}
	return s.queryLeads(ctx, "list leads", query, args...)
}

func (s *PostgresStore) DeleteLead(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leads WHERE lead_id = $1`, id)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: delete lead %s", id)
	}
	return tag.RowsAffected() > 0, nil
}

// ImportLeads bulk loads leads with COPY, skipping ids already stored.
func (s *PostgresStore) ImportLeads(ctx context.Context, leads []model.Lead) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(leads))
	for i := range leads {
		args, err := leadArgs(prepareLead(&leads[i], now))
		if err != nil {
			return 0, eris.Wrap(err, "postgres: import")
		}
		rows = append(rows, args)
	}
	n, err := db.BulkInsert(ctx, s.pool, db.BulkConfig{
		Table:        "leads",
		Columns:      leadColumns,
		ConflictKeys: []string{"lead_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import leads")
	}
	return int(n), nil
}

// --- Queries ---

func (s *PostgresStore) ReviewQueue(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.queryLeads(ctx, "review queue",
		`SELECT data FROM leads WHERE status = $1 ORDER BY score DESC, created_at ASC LIMIT $2`,
		string(model.StatusHumanReview), limit)
}

func (s *PostgresStore) StatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: status counts")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts[status] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: status counts iterate")
}

func (s *PostgresStore) ScoreDistribution(ctx context.Context) ([]model.ScoreBucket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT score, COUNT(*) FROM leads WHERE score > 0 GROUP BY score ORDER BY score ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: score distribution")
	}
	defer rows.Close()

	var buckets []model.ScoreBucket
	for rows.Next() {
		var b model.ScoreBucket
		if err := rows.Scan(&b.Score, &b.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan score bucket")
		}
		buckets = append(buckets, b)
	}
	return buckets, eris.Wrap(rows.Err(), "postgres: score distribution iterate")
}

func (s *PostgresStore) Analytics(ctx context.Context) (*model.AnalyticsSummary, error) {
	counts, err := s.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	var avgScore, avgTime *float64
	err = s.pool.QueryRow(ctx,
		`SELECT (SELECT AVG(score)::float8 FROM leads WHERE score > 0),
		        (SELECT AVG(processing_time_seconds) FROM leads WHERE processing_time_seconds > 0)`,
	).Scan(&avgScore, &avgTime)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: analytics averages")
	}
	return model.NewAnalyticsSummary(counts, deref(avgScore), deref(avgTime)), nil
}

// --- Checkpoints ---

func (s *PostgresStore) SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	state, payload, err := marshalCheckpoint(cp)
	if err != nil {
		return eris.Wrap(err, "postgres: save checkpoint")
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, pgSaveCheckpoint, cp.RunID, state, payload, cp.CreatedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: save checkpoint %s", cp.RunID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrCheckpointExists, "run %s", cp.RunID)
	}
	return nil
}

func (s *PostgresStore) LoadCheckpoint(ctx context.Context, runID string) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	var state, payload []byte
	err := s.pool.QueryRow(ctx, pgLoadCheckpoint, runID).Scan(&cp.RunID, &state, &payload, &cp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load checkpoint %s", runID)
	}
	if err := unmarshalCheckpoint(&cp, state, payload); err != nil {
		return nil, eris.Wrap(err, "postgres: load checkpoint")
	}
	return &cp, nil
}

func (s *PostgresStore) DeleteCheckpoint(ctx context.Context, runID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM checkpoints WHERE run_id = $1`, runID)
	return eris.Wrapf(err, "postgres: delete checkpoint %s", runID)
}

// --- Email log ---

func (s *PostgresStore) LogEmail(ctx context.Context, entry *model.EmailLog) error {
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx, pgInsertEmail,
		entry.LeadID, entry.ToEmail, entry.Subject, entry.Body, entry.Status, entry.Error, entry.SentAt,
	).Scan(&entry.ID)
	return eris.Wrapf(err, "postgres: log email for %s", entry.LeadID)
}

func (s *PostgresStore) ListEmails(ctx context.Context, leadID string) ([]model.EmailLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, to_email, subject, body, status, error, sent_at
		 FROM email_logs WHERE lead_id = $1 ORDER BY id ASC`, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list emails %s", leadID)
	}
	defer rows.Close()

	var logs []model.EmailLog
	for rows.Next() {
		var e model.EmailLog
		if err := rows.Scan(&e.ID, &e.LeadID, &e.ToEmail, &e.Subject, &e.Body, &e.Status, &e.Error, &e.SentAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan email log")
		}
		logs = append(logs, e)
	}
	return logs, eris.Wrap(rows.Err(), "postgres: list emails iterate")
}

// --- Dead letter queue ---

const pgDLQColumns = `id, lead_id, company_name, error, error_type, failed_stage,
	retry_count, max_retries, next_retry_at, created_at, last_failed_at`

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue (`+pgDLQColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   error = $4, error_type = $5, failed_stage = $6, retry_count = $7,
		   next_retry_at = $9, last_failed_at = $11`,
		entry.ID, entry.LeadID, entry.CompanyName, entry.Error, entry.ErrorType,
		entry.FailedStage, entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT ` + pgDLQColumns + ` FROM dead_letter_queue
	          WHERE next_retry_at <= now() AND retry_count < max_retries`
	args := []any{}
	argIdx := 1

	if filter.ErrorType != "" {
		query += fmt.Sprintf(` AND error_type = $%d`, argIdx)
		args = append(args, filter.ErrorType)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY next_retry_at ASC LIMIT $%d`, argIdx)
	args = append(args, limit)
	return s.queryDLQ(ctx, "dequeue dlq", query, args...)
}

func (s *PostgresStore) ListDLQ(ctx context.Context, limit int) ([]resilience.DLQEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryDLQ(ctx, "list dlq",
		`SELECT `+pgDLQColumns+` FROM dead_letter_queue ORDER BY created_at DESC LIMIT $1`, limit)
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = $1, error = $2, last_failed_at = now()
		 WHERE id = $3`,
		nextRetryAt, lastErr, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment dlq retry %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("dlq_entry not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	return eris.Wrap(err, "postgres: remove dlq")
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count dlq")
}

// helpers

func (s *PostgresStore) queryLeads(ctx context.Context, op, query string, args ...any) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrapf(err, "postgres: %s scan", op)
		}
		l, err := unmarshalLead(data)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: %s", op)
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

func (s *PostgresStore) queryDLQ(ctx context.Context, op, query string, args ...any) ([]resilience.DLQEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		if err := rows.Scan(&e.ID, &e.LeadID, &e.CompanyName, &e.Error, &e.ErrorType, &e.FailedStage,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

func scanPgLead(row pgx.Row) (*model.Lead, error) {
	var data []byte
	err := row.Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan lead")
	}
	return unmarshalLead(data)
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
