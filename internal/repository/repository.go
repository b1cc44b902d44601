package repository

import (
	"context"
	"errors"
)

var ErrRecordNotFound = errors.New("transcript record not found")

type UpdateRiskInput struct {
	ID        string
	RiskScore *int
	Advice    *string
}

type CombineRecordsInput struct {
	Combined   TranscriptRecord
	RemovedIDs []string
}

type TranscriptRepository interface {
	// ListRecords returns every record, newest first.
	ListRecords(ctx context.Context) ([]TranscriptRecord, error)
	InsertRecord(ctx context.Context, record TranscriptRecord) error
	// UpdateText replaces the text and clears score, advice and loading.
	UpdateText(ctx context.Context, id, text string) error
	UpdateRisk(ctx context.Context, input UpdateRiskInput) error
	UpdateLoading(ctx context.Context, id string, loading bool) error
	DeleteRecord(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	// CombineRecords inserts the combined record and removes the originals
	// atomically.
	CombineRecords(ctx context.Context, input CombineRecordsInput) error
}

type Repository interface {
	TranscriptRepository
	Close()
}
