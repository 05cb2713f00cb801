package cli

import (
	"context"

	"github.com/ppiankov/scanfix/internal/apiclient"
	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/notify"
	"github.com/slack-go/slack"
)

// slackOptions is passed to the Slack client; tests point it at a fake API.
var slackOptions []slack.Option

// guardedClient checks GitHub tokens before the backend stores them.
type guardedClient struct {
	*apiclient.Client
}

func (g guardedClient) SaveToken(ctx context.Context, token string) (*models.TokenStatus, error) {
	if err := verifyPAT(ctx, token); err != nil {
		return nil, err
	}
	return g.Client.SaveToken(ctx, token)
}

// pullRequestHook announces created pull requests in Slack when configured.
// It returns nil when Slack is disabled.
func pullRequestHook(repository string, logf func(format string, args ...interface{})) func(context.Context, models.Vulnerability, models.PullRequest) {
	if !cfg.SlackEnabled() {
		return nil
	}
	notifier := notify.NewSlack(cfg.SlackToken, cfg.SlackChannel, slackOptions...)
	return func(ctx context.Context, vuln models.Vulnerability, pr models.PullRequest) {
		if err := notifier.PullRequestCreated(ctx, repository, vuln, pr); err != nil {
			logf("slack: %v", err)
		}
	}
}
