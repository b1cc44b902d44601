package repository

import "time"

// TranscriptRecord is the persisted shape of one transcript.
type TranscriptRecord struct {
	ID              string
	Text            string
	RiskScore       *int
	Advice          *string
	IsAdviceLoading bool
	CreatedAt       time.Time
}
