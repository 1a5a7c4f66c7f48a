package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-triage/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock pools satisfy it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	lead_id      TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT '',
	score        INTEGER,
	tier         TEXT NOT NULL DEFAULT '',
	vertical     TEXT NOT NULL DEFAULT '',
	brain_id     TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	fields       JSONB NOT NULL DEFAULT '{}'::jsonb,
	result       JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS approvals (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	reply_id       TEXT NOT NULL,
	lead_id        TEXT NOT NULL,
	channel        TEXT NOT NULL,
	recipient      TEXT NOT NULL,
	draft          TEXT NOT NULL,
	template_id    TEXT NOT NULL DEFAULT '',
	classification JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS escalations (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	reply_id       TEXT NOT NULL,
	lead_id        TEXT NOT NULL,
	reason         TEXT NOT NULL,
	classification JSONB NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reply_log (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	reply_id     TEXT NOT NULL,
	lead_id      TEXT NOT NULL,
	intent       TEXT NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL,
	route        TEXT NOT NULL,
	failed       BOOLEAN NOT NULL DEFAULT false,
	errors       JSONB NOT NULL DEFAULT '[]'::jsonb,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_approvals_created ON approvals(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_escalations_lead ON escalations(lead_id);
CREATE INDEX IF NOT EXISTS idx_reply_log_processed ON reply_log(processed_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetLeadHash(ctx context.Context, leadID string) (string, bool, error) {
	var hash string
	err := s.pool.QueryRow(ctx, `SELECT content_hash FROM leads WHERE lead_id = $1`, leadID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "postgres: get lead hash %s", leadID)
	}
	return hash, hash != "", nil
}

func (s *PostgresStore) SaveLeadHash(ctx context.Context, leadID, hash string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (lead_id, content_hash, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (lead_id) DO UPDATE SET content_hash = EXCLUDED.content_hash, updated_at = EXCLUDED.updated_at`,
		leadID, hash, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save lead hash %s", leadID)
}

func (s *PostgresStore) SaveScore(ctx context.Context, result *model.ScoringResult, hash string) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal scoring result")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (lead_id, status, score, tier, vertical, brain_id, content_hash, result, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (lead_id) DO UPDATE SET
			status = CASE WHEN leads.status IN ('', $2) THEN EXCLUDED.status ELSE leads.status END,
			score = EXCLUDED.score,
			tier = EXCLUDED.tier,
			vertical = EXCLUDED.vertical,
			brain_id = EXCLUDED.brain_id,
			content_hash = EXCLUDED.content_hash,
			result = EXCLUDED.result,
			updated_at = EXCLUDED.updated_at`,
		result.LeadID, model.StatusScored, result.Score, string(result.Tier), result.VerticalDetected,
		result.BrainUsed, hash, resultJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save score %s", result.LeadID)
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (*LeadRecord, error) {
	var rec LeadRecord
	var tier string
	var fieldsJSON []byte
	var resultJSON *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT lead_id, status, score, tier, vertical, brain_id, content_hash, fields, result, updated_at
		 FROM leads WHERE lead_id = $1`, leadID,
	).Scan(&rec.LeadID, &rec.Status, &rec.Score, &tier, &rec.Vertical, &rec.BrainID, &rec.ContentHash, &fieldsJSON, &resultJSON, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", leadID)
	}

	rec.Tier = model.LeadTier(tier)
	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal lead fields")
		}
	}
	if resultJSON != nil {
		rec.Result = &model.ScoringResult{}
		if err := json.Unmarshal(*resultJSON, rec.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal scoring result")
		}
	}
	return &rec, nil
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, leadID string, fields map[string]any) error {
	status, rest := splitStatus(fields)
	restJSON, err := json.Marshal(rest)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal lead fields")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (lead_id, status, fields, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (lead_id) DO UPDATE SET
			status = CASE WHEN EXCLUDED.status = '' THEN leads.status ELSE EXCLUDED.status END,
			fields = leads.fields || EXCLUDED.fields,
			updated_at = EXCLUDED.updated_at`,
		leadID, status, restJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: update lead status %s", leadID)
}

func (s *PostgresStore) SaveApproval(ctx context.Context, item model.ApprovalItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	classJSON, err := json.Marshal(item.Classification)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal classification")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO approvals (id, reply_id, lead_id, channel, recipient, draft, template_id, classification, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.ReplyID, item.LeadID, string(item.Channel), item.Recipient, item.Draft,
		item.TemplateID, classJSON, item.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert approval for reply %s", item.ReplyID)
}

func (s *PostgresStore) ListApprovals(ctx context.Context, limit int) ([]model.ApprovalItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, reply_id, lead_id, channel, recipient, draft, template_id, classification, created_at
		 FROM approvals ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list approvals")
	}
	defer rows.Close()

	var items []model.ApprovalItem
	for rows.Next() {
		var it model.ApprovalItem
		var channel string
		var classJSON []byte
		if err := rows.Scan(&it.ID, &it.ReplyID, &it.LeadID, &channel, &it.Recipient, &it.Draft, &it.TemplateID, &classJSON, &it.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan approval")
		}
		it.Channel = model.Channel(channel)
		if err := json.Unmarshal(classJSON, &it.Classification); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal classification")
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list approvals iterate")
}

func (s *PostgresStore) SaveEscalation(ctx context.Context, e model.Escalation) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	classJSON, err := json.Marshal(e.Classification)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal classification")
	}
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal payload")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO escalations (id, reply_id, lead_id, reason, classification, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.ReplyID, e.LeadID, e.Reason, classJSON, payloadJSON, e.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert escalation for reply %s", e.ReplyID)
}

func (s *PostgresStore) RecordReply(ctx context.Context, rec ReplyRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}
	errsJSON, err := json.Marshal(nonNil(rec.Errors))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal reply errors")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reply_log (id, reply_id, lead_id, intent, confidence, route, failed, errors, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.ReplyID, rec.LeadID, string(rec.Intent), rec.Confidence, string(rec.Route),
		rec.Failed, errsJSON, rec.ProcessedAt,
	)
	return eris.Wrapf(err, "postgres: record reply %s", rec.ReplyID)
}

func (s *PostgresStore) ListReplies(ctx context.Context, since time.Time) ([]ReplyRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, reply_id, lead_id, intent, confidence, route, failed, errors, processed_at
		 FROM reply_log WHERE processed_at >= $1 ORDER BY processed_at`, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list replies")
	}
	defer rows.Close()

	var recs []ReplyRecord
	for rows.Next() {
		var r ReplyRecord
		var intent, route string
		var errsJSON []byte
		if err := rows.Scan(&r.ID, &r.ReplyID, &r.LeadID, &intent, &r.Confidence, &route, &r.Failed, &errsJSON, &r.ProcessedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan reply")
		}
		r.Intent = model.Intent(intent)
		r.Route = model.ReplyTier(route)
		if err := json.Unmarshal(errsJSON, &r.Errors); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal reply errors")
		}
		if len(r.Errors) == 0 {
			r.Errors = nil
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list replies iterate")
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
