package alerts

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// SlackNotifier posts budget alerts to a Slack incoming webhook as Block Kit
// messages.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		client:     &http.Client{Timeout: deliverTimeout},
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, alert Alert) error {
	return deliver(ctx, s.client, s.Name(), s.webhookURL, s.message(alert), nil)
}

var levelEmoji = map[AlertLevel]string{
	AlertWarning:  ":warning:",
	AlertCritical: ":rotating_light:",
	AlertExceeded: ":no_entry:",
}

func (s *SlackNotifier) message(a Alert) slackMessage {
	heading := fmt.Sprintf("%s %s is at %.0f%% of its daily AI budget",
		levelEmoji[a.Level], a.OrganizationID, a.PercentageUsed)

	fields := []slackText{
		mrkdwn("*Level*\n" + strings.ToUpper(string(a.Level))),
		mrkdwn("*Day*\n" + a.PeriodDate),
		mrkdwn(fmt.Sprintf("*Tokens*\n%d / %d", a.TokensUsed, a.TokenLimit)),
		mrkdwn(fmt.Sprintf("*Cost*\n$%.2f / $%.2f", a.CostUsed, a.CostLimit)),
	}

	note := fmt.Sprintf("Warning threshold %.0f%%.", a.ThresholdPct)
	if a.Level == AlertExceeded {
		note += " Non-critical tasks now route to the open model."
	}

	return slackMessage{
		Channel: s.channel,
		Text:    a.Message,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: heading}},
			{Type: "section", Fields: fields},
			{Type: "context", Elements: []slackText{mrkdwn(note)}},
		},
	}
}

func mrkdwn(s string) slackText { return slackText{Type: "mrkdwn", Text: s} }

type slackMessage struct {
	Channel string       `json:"channel,omitempty"`
	Text    string       `json:"text"`
	Blocks  []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
