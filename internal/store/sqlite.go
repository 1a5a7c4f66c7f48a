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

	"github.com/sells-group/lead-triage/internal/model"
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
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	lead_id      TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT '',
	score        INTEGER,
	tier         TEXT NOT NULL DEFAULT '',
	vertical     TEXT NOT NULL DEFAULT '',
	brain_id     TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	fields       TEXT NOT NULL DEFAULT '{}',
	result       TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS approvals (
	id             TEXT PRIMARY KEY,
	reply_id       TEXT NOT NULL,
	lead_id        TEXT NOT NULL,
	channel        TEXT NOT NULL,
	recipient      TEXT NOT NULL,
	draft          TEXT NOT NULL,
	template_id    TEXT NOT NULL DEFAULT '',
	classification TEXT NOT NULL,
	created_at_ms  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS escalations (
	id             TEXT PRIMARY KEY,
	reply_id       TEXT NOT NULL,
	lead_id        TEXT NOT NULL,
	reason         TEXT NOT NULL,
	classification TEXT NOT NULL,
	payload        TEXT NOT NULL,
	created_at_ms  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reply_log (
	id              TEXT PRIMARY KEY,
	reply_id        TEXT NOT NULL,
	lead_id         TEXT NOT NULL,
	intent          TEXT NOT NULL,
	confidence      REAL NOT NULL,
	route           TEXT NOT NULL,
	failed          INTEGER NOT NULL DEFAULT 0,
	errors          TEXT NOT NULL DEFAULT '[]',
	processed_at_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_approvals_created ON approvals(created_at_ms);
CREATE INDEX IF NOT EXISTS idx_escalations_lead ON escalations(lead_id);
CREATE INDEX IF NOT EXISTS idx_reply_log_processed ON reply_log(processed_at_ms);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetLeadHash(ctx context.Context, leadID string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT content_hash FROM leads WHERE lead_id = ?`, leadID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "sqlite: get lead hash %s", leadID)
	}
	return hash, hash != "", nil
}

func (s *SQLiteStore) SaveLeadHash(ctx context.Context, leadID, hash string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (lead_id, content_hash, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(lead_id) DO UPDATE SET content_hash = excluded.content_hash, updated_at = excluded.updated_at`,
		leadID, hash, now, now,
	)
	return eris.Wrapf(err, "sqlite: save lead hash %s", leadID)
}

func (s *SQLiteStore) SaveScore(ctx context.Context, result *model.ScoringResult, hash string) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal scoring result")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (lead_id, status, score, tier, vertical, brain_id, content_hash, result, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(lead_id) DO UPDATE SET
			status = CASE WHEN leads.status IN ('', ?) THEN excluded.status ELSE leads.status END,
			score = excluded.score,
			tier = excluded.tier,
			vertical = excluded.vertical,
			brain_id = excluded.brain_id,
			content_hash = excluded.content_hash,
			result = excluded.result,
			updated_at = excluded.updated_at`,
		result.LeadID, model.StatusScored, result.Score, string(result.Tier), result.VerticalDetected,
		result.BrainUsed, hash, string(resultJSON), now, now, model.StatusScored,
	)
	return eris.Wrapf(err, "sqlite: save score %s", result.LeadID)
}

func (s *SQLiteStore) GetLead(ctx context.Context, leadID string) (*LeadRecord, error) {
	var rec LeadRecord
	var score sql.NullInt64
	var tier, fieldsJSON string
	var resultJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT lead_id, status, score, tier, vertical, brain_id, content_hash, fields, result, updated_at
		 FROM leads WHERE lead_id = ?`, leadID,
	).Scan(&rec.LeadID, &rec.Status, &score, &tier, &rec.Vertical, &rec.BrainID, &rec.ContentHash, &fieldsJSON, &resultJSON, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", leadID)
	}

	rec.Tier = model.LeadTier(tier)
	if score.Valid {
		v := int(score.Int64)
		rec.Score = &v
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal lead fields")
	}
	if resultJSON.Valid {
		rec.Result = &model.ScoringResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), rec.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal scoring result")
		}
	}
	return &rec, nil
}

func (s *SQLiteStore) UpdateLeadStatus(ctx context.Context, leadID string, fields map[string]any) error {
	status, rest := splitStatus(fields)
	restJSON, err := json.Marshal(rest)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal lead fields")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (lead_id, status, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(lead_id) DO UPDATE SET
			status = CASE WHEN excluded.status = '' THEN leads.status ELSE excluded.status END,
			fields = json_patch(leads.fields, excluded.fields),
			updated_at = excluded.updated_at`,
		leadID, status, string(restJSON), now, now,
	)
	return eris.Wrapf(err, "sqlite: update lead status %s", leadID)
}

func (s *SQLiteStore) SaveApproval(ctx context.Context, item model.ApprovalItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	classJSON, err := json.Marshal(item.Classification)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal classification")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO approvals (id, reply_id, lead_id, channel, recipient, draft, template_id, classification, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ReplyID, item.LeadID, string(item.Channel), item.Recipient, item.Draft,
		item.TemplateID, string(classJSON), item.CreatedAt.UnixMilli(),
	)
	return eris.Wrapf(err, "sqlite: insert approval for reply %s", item.ReplyID)
}

func (s *SQLiteStore) ListApprovals(ctx context.Context, limit int) ([]model.ApprovalItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reply_id, lead_id, channel, recipient, draft, template_id, classification, created_at_ms
		 FROM approvals ORDER BY created_at_ms DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list approvals")
	}
	defer rows.Close() //nolint:errcheck

	var items []model.ApprovalItem
	for rows.Next() {
		var it model.ApprovalItem
		var channel, classJSON string
		var createdMs int64
		if err := rows.Scan(&it.ID, &it.ReplyID, &it.LeadID, &channel, &it.Recipient, &it.Draft, &it.TemplateID, &classJSON, &createdMs); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan approval")
		}
		it.Channel = model.Channel(channel)
		it.CreatedAt = time.UnixMilli(createdMs).UTC()
		if err := json.Unmarshal([]byte(classJSON), &it.Classification); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal classification")
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list approvals iterate")
}

func (s *SQLiteStore) SaveEscalation(ctx context.Context, e model.Escalation) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	classJSON, err := json.Marshal(e.Classification)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal classification")
	}
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal payload")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO escalations (id, reply_id, lead_id, reason, classification, payload, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ReplyID, e.LeadID, e.Reason, string(classJSON), string(payloadJSON), e.CreatedAt.UnixMilli(),
	)
	return eris.Wrapf(err, "sqlite: insert escalation for reply %s", e.ReplyID)
}

func (s *SQLiteStore) RecordReply(ctx context.Context, rec ReplyRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}
	errsJSON, err := json.Marshal(nonNil(rec.Errors))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal reply errors")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reply_log (id, reply_id, lead_id, intent, confidence, route, failed, errors, processed_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ReplyID, rec.LeadID, string(rec.Intent), rec.Confidence, string(rec.Route),
		rec.Failed, string(errsJSON), rec.ProcessedAt.UnixMilli(),
	)
	return eris.Wrapf(err, "sqlite: record reply %s", rec.ReplyID)
}

func (s *SQLiteStore) ListReplies(ctx context.Context, since time.Time) ([]ReplyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, reply_id, lead_id, intent, confidence, route, failed, errors, processed_at_ms
		 FROM reply_log WHERE processed_at_ms >= ? ORDER BY processed_at_ms`, since.UnixMilli(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list replies")
	}
	defer rows.Close() //nolint:errcheck

	var recs []ReplyRecord
	for rows.Next() {
		var r ReplyRecord
		var intent, route, errsJSON string
		var processedMs int64
		if err := rows.Scan(&r.ID, &r.ReplyID, &r.LeadID, &intent, &r.Confidence, &route, &r.Failed, &errsJSON, &processedMs); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan reply")
		}
		r.Intent = model.Intent(intent)
		r.Route = model.ReplyTier(route)
		r.ProcessedAt = time.UnixMilli(processedMs).UTC()
		if err := json.Unmarshal([]byte(errsJSON), &r.Errors); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal reply errors")
		}
		if len(r.Errors) == 0 {
			r.Errors = nil
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list replies iterate")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
