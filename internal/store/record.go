package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/quizflow/internal/analytics"
	"github.com/abhisek/quizflow/internal/telemetry"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// recordRepo implements RecordRepo with database/sql.
type recordRepo struct {
	db  *sql.DB
	seq *sequenceCounter
	now func() time.Time
}

func (r *recordRepo) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func (r *recordRepo) Save(ctx context.Context, rec *analytics.Record, logs []telemetry.Entry) (*StoredRecord, error) {
	if rec == nil {
		return nil, fmt.Errorf("save record: nil record")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	seq, err := r.seq.Next(ctx, tx)
	if err != nil {
		return nil, err
	}

	out := &StoredRecord{
		ID:        uuid.NewString(),
		Sequence:  seq,
		CreatedAt: r.clock().UTC(),
		Record:    *rec,
		Logs:      logs,
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO analytics_records
		(id, sequence, created_at, user_id, session_id, question_id, type_id, type_version, atom_id,
		 is_correct, mastery_after, fallback, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, seq, out.CreatedAt.Format(timeLayout), rec.UserID, rec.SessionID, rec.QuestionID,
		rec.TypeID, rec.TypeVersion, rec.AtomID, rec.IsCorrect, rec.MasteryAfter, rec.Fallback, string(data),
	)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	for i, e := range logs {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal log entry %d: %w", i, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO interaction_logs (record_id, position, type, payload, timestamp) VALUES (?, ?, ?, ?, ?)`,
			out.ID, i, string(e.Type), string(payload), e.Timestamp.UTC().Format(timeLayout),
		)
		if err != nil {
			return nil, fmt.Errorf("insert log entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (r *recordRepo) List(ctx context.Context, opts QueryOpts) ([]StoredRecord, error) {
	var (
		where []string
		args  []any
	)
	if opts.After > 0 {
		where = append(where, "sequence > ?")
		args = append(args, opts.After)
	}
	if opts.Before > 0 {
		where = append(where, "sequence < ?")
		args = append(args, opts.Before)
	}
	if !opts.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, opts.From.UTC().Format(timeLayout))
	}
	if !opts.To.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, opts.To.UTC().Format(timeLayout))
	}
	if opts.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, opts.UserID)
	}
	if opts.QuestionID != "" {
		where = append(where, "question_id = ?")
		args = append(args, opts.QuestionID)
	}
	if opts.TypeID != "" {
		where = append(where, "type_id = ?")
		args = append(args, opts.TypeID)
	}

	q := "SELECT id, sequence, created_at, data FROM analytics_records"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY sequence DESC"
	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		sr, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (r *recordRepo) Get(ctx context.Context, id string) (*StoredRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, sequence, created_at, data FROM analytics_records WHERE id = ?", id)
	sr, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT type, payload, timestamp FROM interaction_logs WHERE record_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	sr.Logs = []telemetry.Entry{}
	for rows.Next() {
		var typ, payload, ts string
		if err := rows.Scan(&typ, &payload, &ts); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		e := telemetry.Entry{Type: telemetry.EventType(typ)}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("decode log payload: %w", err)
		}
		if e.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse log timestamp: %w", err)
		}
		sr.Logs = append(sr.Logs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}
	return sr, nil
}

func (r *recordRepo) AtomHistory(ctx context.Context, userID string) (map[string]float64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT atom_id, mastery_after FROM analytics_records
		WHERE user_id = ? AND atom_id != '' AND fallback = 0
		ORDER BY sequence ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query atom history: %w", err)
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var atom string
		var mastery float64
		if err := rows.Scan(&atom, &mastery); err != nil {
			return nil, fmt.Errorf("scan atom history: %w", err)
		}
		out[atom] = mastery // later rows win
	}
	return out, rows.Err()
}

func (r *recordRepo) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("prune: keep must be non-negative")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM analytics_records WHERE sequence NOT IN
		(SELECT sequence FROM analytics_records ORDER BY sequence DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune records: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*StoredRecord, error) {
	var (
		sr      StoredRecord
		created string
		data    string
	)
	if err := s.Scan(&sr.ID, &sr.Sequence, &created, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	var err error
	if sr.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &sr.Record); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", sr.ID, err)
	}
	return &sr, nil
}
