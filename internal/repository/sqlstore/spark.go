package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/service/tracker"
)

// SparkRepo implements tracker.Repository. Each row keeps the full record as
// a JSON document next to the columns used for lookups and filtering.
type SparkRepo struct{ s *Store }

// NewSparkRepo creates a SQL-backed Spark repository.
func NewSparkRepo(s *Store) *SparkRepo { return &SparkRepo{s: s} }

type sparkRow struct {
	Version int64  `db:"version"`
	Record  []byte `db:"record"`
}

func (r sparkRow) decode() (*domain.EngagementRecord, error) {
	rec := &domain.EngagementRecord{}
	if err := json.Unmarshal(r.Record, rec); err != nil {
		return nil, fmt.Errorf("decode spark: %w", err)
	}
	rec.Version = r.Version
	return rec, nil
}

func nanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func (r *SparkRepo) get(ctx context.Context, where string, arg any) (*domain.EngagementRecord, error) {
	var row sparkRow
	err := r.s.db.GetContext(ctx, &row, r.s.db.Rebind(
		`SELECT version, record FROM engagement_records WHERE `+where+` = ?`), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tracker.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get spark: %w", err)
	}
	return row.decode()
}

func (r *SparkRepo) Get(ctx context.Context, id string) (*domain.EngagementRecord, error) {
	return r.get(ctx, "id", id)
}

func (r *SparkRepo) GetByToken(ctx context.Context, token string) (*domain.EngagementRecord, error) {
	return r.get(ctx, "token", token)
}

func (r *SparkRepo) Create(ctx context.Context, rec *domain.EngagementRecord) error {
	if rec.ID == "" || rec.Token == "" {
		return fmt.Errorf("id and token required")
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode spark: %w", err)
	}
	_, err = r.s.db.ExecContext(ctx, r.s.db.Rebind(`
		INSERT INTO engagement_records (id, token, owner_id, status, created_ns, expires_ns, version, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.Token, rec.OwnerID, string(rec.Status), rec.CreatedAt.UnixNano(),
		nanos(rec.ExpiresAt), rec.Version, string(blob),
	)
	if err != nil {
		return fmt.Errorf("create spark: %w", err)
	}
	return nil
}

func (r *SparkRepo) Put(ctx context.Context, rec *domain.EngagementRecord) error {
	expected := rec.Version
	next := *rec
	next.Version = expected + 1
	blob, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode spark: %w", err)
	}

	res, err := r.s.db.ExecContext(ctx, r.s.db.Rebind(`
		UPDATE engagement_records
		SET status = ?, expires_ns = ?, version = ?, record = ?
		WHERE id = ? AND version = ?`),
		string(rec.Status), nanos(rec.ExpiresAt), expected+1, string(blob), rec.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("put spark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put spark: %w", err)
	}
	if n == 0 {
		var one int
		err := r.s.db.GetContext(ctx, &one, r.s.db.Rebind(`SELECT 1 FROM engagement_records WHERE id = ?`), rec.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return tracker.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("put spark: %w", err)
		}
		return tracker.ErrConflict
	}
	rec.Version = expected + 1
	return nil
}

func (r *SparkRepo) List(ctx context.Context, ownerID string, f tracker.ListFilter) ([]domain.EngagementRecord, int, error) {
	where := ` WHERE owner_id = ?`
	args := []any{ownerID}
	if f.Status != "" {
		where += ` AND status = ?`
		args = append(args, f.Status)
	}
	if !f.Since.IsZero() {
		where += ` AND created_ns >= ?`
		args = append(args, f.Since.UnixNano())
	}

	var total int
	if err := r.s.db.GetContext(ctx, &total, r.s.db.Rebind(`SELECT COUNT(*) FROM engagement_records`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count sparks: %w", err)
	}

	var rows []sparkRow
	q := `SELECT version, record FROM engagement_records` + where +
		` ORDER BY created_ns DESC, id ASC LIMIT ? OFFSET ?`
	if err := r.s.db.SelectContext(ctx, &rows, r.s.db.Rebind(q), append(args, limitOrAll(f.Limit), f.Offset)...); err != nil {
		return nil, 0, fmt.Errorf("list sparks: %w", err)
	}

	out := make([]domain.EngagementRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.decode()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *rec)
	}
	return out, total, nil
}

func (r *SparkRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.EngagementRecord, error) {
	var rows []sparkRow
	err := r.s.db.SelectContext(ctx, &rows, r.s.db.Rebind(`
		SELECT version, record FROM engagement_records
		WHERE expires_ns IS NOT NULL AND expires_ns <= ?
		  AND status NOT IN (?, ?)
		ORDER BY expires_ns ASC
		LIMIT ?`),
		now.UnixNano(), string(domain.StatusExpired), string(domain.StatusConverted), limitOrAll(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list expired sparks: %w", err)
	}
	out := make([]domain.EngagementRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}
