package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/foxseedlab/scamwatch/internal/alert"
)

// Notifier posts alerts to one text channel through the REST API. It
// never opens a gateway connection.
type Notifier struct {
	session   *discordgo.Session
	channelID string
	location  *time.Location
}

func NewNotifier(token, channelID string) (*Notifier, error) {
	if token == "" || channelID == "" {
		return &Notifier{}, nil
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &Notifier{session: s, channelID: channelID, location: time.Local}, nil
}

func (n *Notifier) Name() string { return "discord" }

func (n *Notifier) Enabled() bool { return n.session != nil }

func (n *Notifier) Notify(ctx context.Context, a alert.Alert) error {
	if n.session == nil {
		return nil
	}
	msg := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "⚠️ 高風險通話警示",
			Description: a.Text,
			Color:       embedColor(a.RiskScore),
			Timestamp:   a.CreatedAt.Format(time.RFC3339),
			Fields: []*discordgo.MessageEmbedField{
				{Name: "風險分數", Value: strconv.Itoa(a.RiskScore), Inline: true},
				{Name: "建議", Value: nonEmpty(a.Advice)},
			},
		}},
		Content: a.Message(n.location),
	}
	_, err := n.session.ChannelMessageSendComplex(n.channelID, msg, discordgo.WithContext(ctx))
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return fmt.Errorf("discord returned status %d: %w", restErr.Response.StatusCode, err)
	}
	return err
}

func embedColor(score int) int {
	if score >= 90 {
		return 0xd32f2f
	}
	return 0xf57c00
}

func nonEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
