package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"meetbot/internal/appinfo"
	"meetbot/internal/botlog"
	"meetbot/internal/metrics"
)

const (
	discordTitle          = "Class Automation Update"
	defaultDiscordTimeout = 15 * time.Second
)

var discordColors = map[Outcome]string{
	OutcomeJoined:  "03b2f8",
	OutcomeLeft:    "f03c3c",
	OutcomeNoClass: "f0a000",
}

type DiscordOptions struct {
	WebhookURL string
	Timeout    time.Duration
	Client     *http.Client
	Logger     *botlog.Logger
	Metrics    metrics.Sink
}

// DiscordSink posts an embed to a Discord webhook.
type DiscordSink struct {
	url     string
	timeout time.Duration
	client  *http.Client
	log     *botlog.Logger
	metrics metrics.Sink
}

func NewDiscordSink(opts DiscordOptions) *DiscordSink {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultDiscordTimeout
	}
	return &DiscordSink{
		url:     strings.TrimSpace(opts.WebhookURL),
		timeout: timeout,
		client:  client,
		log:     opts.Logger,
		metrics: metrics.OrNoop(opts.Metrics),
	}
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields"`
	Footer    discordFooter  `json:"footer"`
	Timestamp string         `json:"timestamp"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func buildDiscordPayload(n Notification) discordPayload {
	color, _ := strconv.ParseInt(discordColors[n.Outcome], 16, 32)
	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	return discordPayload{Embeds: []discordEmbed{{
		Title: discordTitle,
		Color: int(color),
		Fields: []discordField{
			{Name: "Class (Meeting)", Value: fieldValue(n.Label), Inline: true},
			{Name: "Status", Value: fieldValue(n.Outcome.Title()), Inline: true},
			{Name: "Start Time", Value: fieldValue(n.Start), Inline: true},
			{Name: "End Time", Value: fieldValue(n.End), Inline: true},
		},
		Footer:    discordFooter{Text: appinfo.Display()},
		Timestamp: at.UTC().Format(time.RFC3339),
	}}}
}

// Discord rejects embeds with empty field values.
func fieldValue(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func (s *DiscordSink) Notify(ctx context.Context, n Notification) bool {
	delivered := s.send(ctx, n)
	s.metrics.NotificationSent(string(n.Outcome), delivered)
	return delivered
}

func (s *DiscordSink) send(ctx context.Context, n Notification) bool {
	if s.url == "" {
		s.log.Warnf("discord webhook not configured; dropping %s notification", n.Outcome)
		return false
	}
	if n.Outcome == OutcomeFailed {
		return false
	}

	body, err := json.Marshal(buildDiscordPayload(n))
	if err != nil {
		s.log.Errorf("discord: marshal: %v", err)
		return false
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		s.log.Errorf("discord: create request: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", appinfo.UserAgent())

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warnf("discord: send: %v", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		s.log.Logf(botlog.KindNotify, "discord notification sent (%s)", n.Outcome)
		return true
	default:
		s.log.Warnf("discord: unexpected status %d", resp.StatusCode)
		return false
	}
}
