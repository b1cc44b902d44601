package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/scamwatch/internal/transcript"
)

// Kept explicit instead of time.DateTime so the layout is easy to change.
const timeLayout = "2006-01-02 15:04:05"

const (
	messageTitle = "⚠️ 高風險通話警示"
	maxTextRunes = 300
)

type Alert struct {
	RecordID  string
	Text      string
	RiskScore int
	Advice    string
	CreatedAt time.Time
}

// Notifier delivers an alert to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a Alert) error
}

func fromRecord(rec transcript.Record) Alert {
	a := Alert{RecordID: rec.ID, Text: rec.Text, CreatedAt: rec.CreatedAt}
	if rec.RiskScore != nil {
		a.RiskScore = *rec.RiskScore
	}
	if rec.Advice != nil {
		a.Advice = *rec.Advice
	}
	return a
}

// Message renders the alert as plain text for chat destinations.
func (a Alert) Message(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	lines := []string{
		messageTitle,
		fmt.Sprintf("風險分數：%d", a.RiskScore),
		fmt.Sprintf("時間：%s", a.CreatedAt.In(loc).Format(timeLayout)),
		fmt.Sprintf("內容：%s", truncateRunes(a.Text, maxTextRunes)),
		fmt.Sprintf("建議：%s", a.Advice),
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
