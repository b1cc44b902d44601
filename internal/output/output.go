package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/foxseedlab/scamwatch/internal/session"
	"github.com/foxseedlab/scamwatch/internal/transcript"
)

const (
	timeLayout  = "2006-01-02 15:04:05"
	shortIDLen  = 8
	previewLen  = 60
	loudnessBar = 20
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

func (f *Formatter) SessionState(s session.State, language string) {
	switch s.Phase {
	case session.PhaseListening:
		fmt.Fprintf(f.w, "🎙️  Listening (%s)\n", language)
	case session.PhaseFailed:
		fmt.Fprintf(f.w, "❌ Session failed: %s\n", s.Reason)
	case session.PhaseIdle:
		fmt.Fprintf(f.w, "⏹️  Idle\n")
	default:
		fmt.Fprintf(f.w, "⏳ %s\n", s.Phase)
	}
}

func (f *Formatter) Partial(text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(f.w, "   … %s\n", text)
}

func (f *Formatter) Loudness(level float64) {
	n := int(level*loudnessBar + 0.5)
	if n < 0 {
		n = 0
	}
	if n > loudnessBar {
		n = loudnessBar
	}
	fmt.Fprintf(f.w, "   [%s%s]\n", strings.Repeat("#", n), strings.Repeat(".", loudnessBar-n))
}

// Transcript prints a record with its evaluation status on one line,
// followed by the advice when there is any.
func (f *Formatter) Transcript(rec transcript.Record) {
	fmt.Fprintf(f.w, "📝 [%s] %s %s  %s\n", ShortID(rec.ID), rec.CreatedAt.Local().Format(timeLayout), riskLabel(rec), rec.Text)
	if rec.IsAdviceLoading {
		fmt.Fprintf(f.w, "   🤖 generating advice...\n")
		return
	}
	if rec.Advice != nil && *rec.Advice != "" {
		fmt.Fprintf(f.w, "   💡 %s\n", *rec.Advice)
	}
}

func (f *Formatter) HistoryHeader(n int) {
	fmt.Fprintf(f.w, "📁 Transcripts (%d):\n\n", n)
}

func (f *Formatter) HistoryItem(rec transcript.Record) {
	fmt.Fprintf(f.w, "  %s  %s  %-8s %s\n", ShortID(rec.ID), rec.CreatedAt.Local().Format(timeLayout), riskLabel(rec), preview(rec.Text))
}

func (f *Formatter) HighestRisk(rec transcript.Record) {
	fmt.Fprintf(f.w, "\n🚨 Highest risk: [%s] %d  %s\n", ShortID(rec.ID), *rec.RiskScore, preview(rec.Text))
}

func ShortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func riskLabel(rec transcript.Record) string {
	if rec.RiskScore == nil {
		return "(--)"
	}
	return fmt.Sprintf("(%d)", *rec.RiskScore)
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen]) + "…"
}
