package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// Serialize writers so UpdateLead's read-modify-write never interleaves.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	lead_id                 TEXT PRIMARY KEY,
	company_name            TEXT NOT NULL,
	status                  TEXT NOT NULL DEFAULT 'new',
	score                   INTEGER NOT NULL DEFAULT 0,
	confidence              REAL NOT NULL DEFAULT 0,
	processing_time_seconds REAL NOT NULL DEFAULT 0,
	created_at              DATETIME NOT NULL,
	updated_at              DATETIME NOT NULL,
	data                    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS checkpoints (
	run_id     TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS email_logs (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	lead_id  TEXT NOT NULL,
	to_email TEXT NOT NULL,
	subject  TEXT NOT NULL,
	body     TEXT NOT NULL,
	status   TEXT NOT NULL,
	error    TEXT NOT NULL DEFAULT '',
	sent_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	lead_id        TEXT NOT NULL,
	company_name   TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_stage   TEXT NOT NULL DEFAULT '',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL,
	last_failed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_email_logs_lead_id ON email_logs(lead_id);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Leads ---

const sqliteInsertLead = `INSERT INTO leads
	(lead_id, company_name, status, score, confidence, processing_time_seconds, created_at, updated_at, data)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	if lead == nil {
		return nil, eris.New("sqlite: create lead: nil lead")
	}
	l := prepareLead(lead, time.Now().UTC())
	args, err := leadArgs(l)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create lead")
	}
	if _, err := s.db.ExecContext(ctx, sqliteInsertLead, sqliteArgs(args)...); err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert lead %s", l.LeadID)
	}
	return l, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM leads WHERE lead_id = ?`, id)
	l, err := scanLead(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return l, nil
}

// UpdateLead merges delta into the stored lead inside one transaction.
func (s *SQLiteStore) UpdateLead(ctx context.Context, id string, delta *model.LeadDelta) (*model.Lead, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin update lead")
	}
	defer tx.Rollback() //nolint:errcheck

	l, err := scanLead(tx.QueryRowContext(ctx, `SELECT data FROM leads WHERE lead_id = ?`, id))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load lead %s", id)
	}
	if l == nil {
		return nil, nil
	}

	delta.Apply(l)
	l.LeadID = id
	l.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(l)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: marshal lead %s", id)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE leads SET company_name = ?, status = ?, score = ?, confidence = ?,
		 processing_time_seconds = ?, updated_at = ?, data = ? WHERE lead_id = ?`,
		l.CompanyName, string(l.Status), l.Score, l.Confidence,
		l.ProcessingTimeSeconds, l.UpdatedAt, string(data), id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update lead %s", id)
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit update lead")
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT data FROM leads WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, filter.limit())
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}
	return s.queryLeads(ctx, "list leads", query, args...)
}

func (s *SQLiteStore) DeleteLead(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE lead_id = ?`, id)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: delete lead %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

// ImportLeads inserts leads in one transaction, skipping ids already stored.
func (s *SQLiteStore) ImportLeads(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO leads
		(lead_id, company_name, status, score, confidence, processing_time_seconds, created_at, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare import")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	inserted := 0
	for i := range leads {
		l := prepareLead(&leads[i], now)
		args, err := leadArgs(l)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: import")
		}
		res, err := stmt.ExecContext(ctx, sqliteArgs(args)...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import lead %s", l.LeadID)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return inserted, nil
}

// --- Queries ---

func (s *SQLiteStore) ReviewQueue(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.queryLeads(ctx, "review queue",
		`SELECT data FROM leads WHERE status = ? ORDER BY score DESC, created_at ASC LIMIT ?`,
		string(model.StatusHumanReview), limit)
}

func (s *SQLiteStore) StatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: status counts")
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		counts[status] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: status counts iterate")
}

func (s *SQLiteStore) ScoreDistribution(ctx context.Context) ([]model.ScoreBucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT score, COUNT(*) FROM leads WHERE score > 0 GROUP BY score ORDER BY score ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: score distribution")
	}
	defer rows.Close() //nolint:errcheck

	var buckets []model.ScoreBucket
	for rows.Next() {
		var b model.ScoreBucket
		if err := rows.Scan(&b.Score, &b.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score bucket")
		}
		buckets = append(buckets, b)
	}
	return buckets, eris.Wrap(rows.Err(), "sqlite: score distribution iterate")
}

func (s *SQLiteStore) Analytics(ctx context.Context) (*model.AnalyticsSummary, error) {
	counts, err := s.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	var avgScore, avgTime sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT AVG(score) FROM leads WHERE score > 0),
		        (SELECT AVG(processing_time_seconds) FROM leads WHERE processing_time_seconds > 0)`,
	).Scan(&avgScore, &avgTime)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: analytics averages")
	}
	return model.NewAnalyticsSummary(counts, avgScore.Float64, avgTime.Float64), nil
}

// --- Checkpoints ---

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	state, payload, err := marshalCheckpoint(cp)
	if err != nil {
		return eris.Wrap(err, "sqlite: save checkpoint")
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (run_id, state, payload, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id) DO NOTHING`,
		cp.RunID, string(state), string(payload), cp.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save checkpoint %s", cp.RunID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrCheckpointExists, "run %s", cp.RunID)
	}
	return nil
}

func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, runID string) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	var state, payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, state, payload, created_at FROM checkpoints WHERE run_id = ?`, runID,
	).Scan(&cp.RunID, &state, &payload, &cp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load checkpoint %s", runID)
	}
	if err := unmarshalCheckpoint(&cp, []byte(state), []byte(payload)); err != nil {
		return nil, eris.Wrap(err, "sqlite: load checkpoint")
	}
	return &cp, nil
}

func (s *SQLiteStore) DeleteCheckpoint(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE run_id = ?`, runID)
	return eris.Wrapf(err, "sqlite: delete checkpoint %s", runID)
}

// --- Email log ---

func (s *SQLiteStore) LogEmail(ctx context.Context, entry *model.EmailLog) error {
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO email_logs (lead_id, to_email, subject, body, status, error, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.LeadID, entry.ToEmail, entry.Subject, entry.Body, entry.Status, entry.Error, entry.SentAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: log email for %s", entry.LeadID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: email log id")
	}
	entry.ID = id
	return nil
}

func (s *SQLiteStore) ListEmails(ctx context.Context, leadID string) ([]model.EmailLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, to_email, subject, body, status, error, sent_at
		 FROM email_logs WHERE lead_id = ? ORDER BY id ASC`, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list emails %s", leadID)
	}
	defer rows.Close() //nolint:errcheck

	var logs []model.EmailLog
	for rows.Next() {
		var e model.EmailLog
		if err := rows.Scan(&e.ID, &e.LeadID, &e.ToEmail, &e.Subject, &e.Body, &e.Status, &e.Error, &e.SentAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan email log")
		}
		logs = append(logs, e)
	}
	return logs, eris.Wrap(rows.Err(), "sqlite: list emails iterate")
}

// --- Dead letter queue ---

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, lead_id, company_name, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type, failed_stage = excluded.failed_stage,
		   retry_count = excluded.retry_count, next_retry_at = excluded.next_retry_at,
		   last_failed_at = excluded.last_failed_at`,
		entry.ID, entry.LeadID, entry.CompanyName, entry.Error, entry.ErrorType, entry.FailedStage,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt.UTC(), entry.CreatedAt.UTC(), entry.LastFailedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

const sqliteDLQColumns = `id, lead_id, company_name, error, error_type, failed_stage,
	retry_count, max_retries, next_retry_at, created_at, last_failed_at`

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT ` + sqliteDLQColumns + ` FROM dead_letter_queue
		WHERE next_retry_at <= ? AND retry_count < max_retries`
	args := []any{time.Now().UTC()}
	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY next_retry_at ASC LIMIT ?`
	args = append(args, limit)
	return s.queryDLQ(ctx, "dequeue dlq", query, args...)
}

func (s *SQLiteStore) ListDLQ(ctx context.Context, limit int) ([]resilience.DLQEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryDLQ(ctx, "list dlq",
		`SELECT `+sqliteDLQColumns+` FROM dead_letter_queue ORDER BY created_at DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		nextRetryAt.UTC(), lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq_entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count dlq")
}

// helpers

func (s *SQLiteStore) queryLeads(ctx context.Context, op, query string, args ...any) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: %s", op)
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

func (s *SQLiteStore) queryDLQ(ctx context.Context, op, query string, args ...any) ([]resilience.DLQEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close() //nolint:errcheck

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		if err := rows.Scan(&e.ID, &e.LeadID, &e.CompanyName, &e.Error, &e.ErrorType, &e.FailedStage,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

// scanLead decodes the data column. A missing row yields (nil, nil).
func scanLead(row scannable) (*model.Lead, error) {
	var data string
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan lead")
	}
	return unmarshalLead([]byte(data))
}

// sqliteArgs stores the JSON document as TEXT so json_extract works on it.
func sqliteArgs(args []any) []any {
	out := append([]any(nil), args...)
	if b, ok := out[len(out)-1].([]byte); ok {
		out[len(out)-1] = string(b)
	}
	return out
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func marshalCheckpoint(cp model.Checkpoint) ([]byte, []byte, error) {
	state, err := json.Marshal(cp.State)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal checkpoint state")
	}
	payload, err := json.Marshal(cp.Payload)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal checkpoint payload")
	}
	return state, payload, nil
}

func unmarshalCheckpoint(cp *model.Checkpoint, state, payload []byte) error {
	if err := json.Unmarshal(state, &cp.State); err != nil {
		return eris.Wrap(err, "unmarshal checkpoint state")
	}
	if err := json.Unmarshal(payload, &cp.Payload); err != nil {
		return eris.Wrap(err, "unmarshal checkpoint payload")
	}
	return nil
}
