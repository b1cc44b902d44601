package transcript

import (
	"time"

	"github.com/foxseedlab/scamwatch/internal/repository"
)

// Record is one stored transcript. RiskScore nil means not yet classified;
// Advice nil means not generated or not requested.
type Record struct {
	ID              string
	Text            string
	RiskScore       *int
	Advice          *string
	IsAdviceLoading bool
	CreatedAt       time.Time

	// Revision increases on every text edit. Risk writes carry the
	// revision they were computed for and are dropped when it no longer
	// matches.
	Revision uint64
}

func (r Record) clone() Record {
	if r.RiskScore != nil {
		v := *r.RiskScore
		r.RiskScore = &v
	}
	if r.Advice != nil {
		v := *r.Advice
		r.Advice = &v
	}
	return r
}

func (r Record) Scored() bool {
	return r.RiskScore != nil
}

func (r Record) toRepository() repository.TranscriptRecord {
	c := r.clone()
	return repository.TranscriptRecord{
		ID:              c.ID,
		Text:            c.Text,
		RiskScore:       c.RiskScore,
		Advice:          c.Advice,
		IsAdviceLoading: c.IsAdviceLoading,
		CreatedAt:       c.CreatedAt,
	}
}

func fromRepository(r repository.TranscriptRecord) Record {
	return Record{
		ID:              r.ID,
		Text:            r.Text,
		RiskScore:       r.RiskScore,
		Advice:          r.Advice,
		IsAdviceLoading: r.IsAdviceLoading,
		CreatedAt:       r.CreatedAt,
	}.clone()
}

type EventKind int

const (
	EventInserted EventKind = iota
	EventTextUpdated
	EventRiskUpdated
	EventAdviceUpdated
	EventLoadingUpdated
	EventDeleted
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventInserted:
		return "inserted"
	case EventTextUpdated:
		return "text_updated"
	case EventRiskUpdated:
		return "risk_updated"
	case EventAdviceUpdated:
		return "advice_updated"
	case EventLoadingUpdated:
		return "loading_updated"
	case EventDeleted:
		return "deleted"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event describes one committed mutation. Record is the state after the
// mutation, or the removed record for EventDeleted.
type Event struct {
	Kind   EventKind
	Record Record
}
