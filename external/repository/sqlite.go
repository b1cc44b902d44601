package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/foxseedlab/scamwatch/internal/repository"
	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) ListRecords(ctx context.Context) ([]repository.TranscriptRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, text, risk_score, advice, is_advice_loading, created_at_ns
		 FROM transcript_records ORDER BY created_at_ns DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.TranscriptRecord
	for rows.Next() {
		var (
			rec       repository.TranscriptRecord
			score     sql.NullInt64
			advice    sql.NullString
			loading   int
			createdNs int64
		)
		if err := rows.Scan(&rec.ID, &rec.Text, &score, &advice, &loading, &createdNs); err != nil {
			return nil, err
		}
		if score.Valid {
			v := int(score.Int64)
			rec.RiskScore = &v
		}
		if advice.Valid {
			v := advice.String
			rec.Advice = &v
		}
		rec.IsAdviceLoading = loading != 0
		rec.CreatedAt = time.Unix(0, createdNs)
		list = append(list, rec)
	}
	return list, rows.Err()
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSQLite(ctx context.Context, db sqlExecer, rec repository.TranscriptRecord) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO transcript_records (id, text, risk_score, advice, is_advice_loading, created_at_ns)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Text, nullableInt(rec.RiskScore), nullableString(rec.Advice), boolInt(rec.IsAdviceLoading), rec.CreatedAt.UnixNano())
	return err
}

func (r *SQLiteRepository) InsertRecord(ctx context.Context, rec repository.TranscriptRecord) error {
	return insertSQLite(ctx, r.db, rec)
}

func (r *SQLiteRepository) UpdateText(ctx context.Context, id, text string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transcript_records
		 SET text = ?, risk_score = NULL, advice = NULL, is_advice_loading = 0
		 WHERE id = ?`,
		text, id)
	return rowsAffected(res, err)
}

func (r *SQLiteRepository) UpdateRisk(ctx context.Context, input repository.UpdateRiskInput) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transcript_records SET risk_score = ?, advice = ? WHERE id = ?`,
		nullableInt(input.RiskScore), nullableString(input.Advice), input.ID)
	return rowsAffected(res, err)
}

func (r *SQLiteRepository) UpdateLoading(ctx context.Context, id string, loading bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transcript_records SET is_advice_loading = ? WHERE id = ?`,
		boolInt(loading), id)
	return rowsAffected(res, err)
}

func (r *SQLiteRepository) DeleteRecord(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transcript_records WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transcript_records`)
	return err
}

func (r *SQLiteRepository) CombineRecords(ctx context.Context, input repository.CombineRecordsInput) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertSQLite(ctx, tx, input.Combined); err != nil {
		return fmt.Errorf("insert combined record: %w", err)
	}
	if len(input.RemovedIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(input.RemovedIDs)), ",")
		args := make([]any, len(input.RemovedIDs))
		for i, id := range input.RemovedIDs {
			args[i] = id
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_records WHERE id IN (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("delete combined originals: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Close() {
	_ = r.db.Close()
}

func rowsAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrRecordNotFound
	}
	return nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
