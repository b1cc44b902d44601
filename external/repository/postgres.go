package repository

import (
	"context"
	"fmt"

	"github.com/foxseedlab/scamwatch/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) ListRecords(ctx context.Context) ([]repository.TranscriptRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, text, risk_score, advice, is_advice_loading, created_at
		 FROM transcript_records ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.TranscriptRecord
	for rows.Next() {
		var rec repository.TranscriptRecord
		if err := rows.Scan(&rec.ID, &rec.Text, &rec.RiskScore, &rec.Advice, &rec.IsAdviceLoading, &rec.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) InsertRecord(ctx context.Context, rec repository.TranscriptRecord) error {
	return insertPostgres(ctx, r.pool, rec)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertPostgres(ctx context.Context, db execer, rec repository.TranscriptRecord) error {
	_, err := db.Exec(ctx,
		`INSERT INTO transcript_records (id, text, risk_score, advice, is_advice_loading, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.Text, rec.RiskScore, rec.Advice, rec.IsAdviceLoading, rec.CreatedAt)
	return err
}

func (r *PostgresRepository) UpdateText(ctx context.Context, id, text string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transcript_records
		 SET text = $2, risk_score = NULL, advice = NULL, is_advice_loading = FALSE
		 WHERE id = $1`,
		id, text)
	return affected(tag, err)
}

func (r *PostgresRepository) UpdateRisk(ctx context.Context, input repository.UpdateRiskInput) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transcript_records SET risk_score = $2, advice = $3 WHERE id = $1`,
		input.ID, input.RiskScore, input.Advice)
	return affected(tag, err)
}

func (r *PostgresRepository) UpdateLoading(ctx context.Context, id string, loading bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transcript_records SET is_advice_loading = $2 WHERE id = $1`,
		id, loading)
	return affected(tag, err)
}

func (r *PostgresRepository) DeleteRecord(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM transcript_records WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM transcript_records`)
	return err
}

func (r *PostgresRepository) CombineRecords(ctx context.Context, input repository.CombineRecordsInput) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertPostgres(ctx, tx, input.Combined); err != nil {
			return fmt.Errorf("insert combined record: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM transcript_records WHERE id = ANY($1::uuid[])`, input.RemovedIDs); err != nil {
			return fmt.Errorf("delete combined originals: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrRecordNotFound
	}
	return nil
}
