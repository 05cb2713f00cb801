// Package notify announces created pull requests in Slack.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/scanfix/internal/models"
	"github.com/slack-go/slack"
)

// Slack posts pull request announcements to one channel. A nil *Slack is a
// valid notifier that does nothing.
type Slack struct {
	client  *slack.Client
	channel string
}

// NewSlack creates a notifier. It returns nil when token or channel is empty.
func NewSlack(token, channel string, opts ...slack.Option) *Slack {
	if token == "" || channel == "" {
		return nil
	}
	return &Slack{client: slack.New(token, opts...), channel: channel}
}

// PullRequestCreated posts a message about a fix pull request.
func (s *Slack) PullRequestCreated(ctx context.Context, repository string, vuln models.Vulnerability, pr models.PullRequest) error {
	if s == nil {
		return nil
	}

	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(Message(repository, vuln, pr), false),
	)
	if err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}
	return nil
}

// Message formats the announcement text.
func Message(repository string, vuln models.Vulnerability, pr models.PullRequest) string {
	var b strings.Builder
	b.WriteString("*Fix pull request opened*\n")
	if repository != "" {
		b.WriteString(fmt.Sprintf("*Repository*: %s\n", repository))
	}
	b.WriteString(fmt.Sprintf("*Vulnerability*: [%s] %s (%s)\n", strings.ToUpper(string(vuln.Severity)), vuln.Title, vuln.ID))
	if vuln.FilePath != "" {
		loc := vuln.FilePath
		if line, ok := vuln.Line(); ok {
			loc = fmt.Sprintf("%s:%d", loc, line)
		}
		b.WriteString(fmt.Sprintf("*File*: %s\n", loc))
	}
	b.WriteString(fmt.Sprintf("*PR URL*: %s\n", pr.URL))
	return b.String()
}
