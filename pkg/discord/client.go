// Package discord posts notification messages to Discord channels through
// the bot REST API.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/rs24k/captracker/pkg/config"
	"github.com/rs24k/captracker/pkg/logging"
)

// Notifier is the outbound notification surface. Promotion detection only
// needs to post a message; everything else about Discord stays here.
type Notifier interface {
	Send(ctx context.Context, channelID, content string) SendResult
}

// SendResult reports one delivery attempt. Callers decide what a failure
// means; a missed notification must never fail the pipeline that asked
// for it.
type SendResult struct {
	OK         bool
	StatusCode int
	Err        string
	// RetryAfter is how long Discord asked us to wait after a 429,
	// zero otherwise.
	RetryAfter time.Duration
}

// Client implements Notifier against the Discord REST API.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates a Discord client. The bot token is normalised to the
// "Bot " authorization scheme whether or not the prefix was configured.
func NewClient(cfg *config.DiscordConfig, logger *zap.Logger) *Client {
	token := strings.TrimSpace(cfg.BotToken)
	token = strings.TrimPrefix(token, "Bot ")
	if token != "" {
		token = "Bot " + token
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", token).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "RS24K-Tracker/1.0 (notifications)")

	return &Client{http: httpClient, logger: logger}
}

type createMessageRequest struct {
	Content         string          `json:"content"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

// allowedMentions restricts pings to role mentions; a message body can
// never ping @everyone or arbitrary users.
type allowedMentions struct {
	Parse []string `json:"parse"`
}

type rateLimitResponse struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

// Send posts content to channelID in a single attempt and reports what
// happened. A 429 response carries the wait Discord asked for.
func (c *Client) Send(ctx context.Context, channelID, content string) SendResult {
	if channelID == "" {
		return SendResult{Err: "channel id is empty"}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createMessageRequest{
			Content:         content,
			AllowedMentions: allowedMentions{Parse: []string{"roles"}},
		}).
		Post(fmt.Sprintf("/channels/%s/messages", channelID))
	if err != nil {
		// Transport errors can echo the request, auth header included.
		return SendResult{Err: logging.SanitizeError(err)}
	}

	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		c.logger.Debug("discord message sent", zap.String("channel_id", channelID))
		return SendResult{OK: true, StatusCode: status}
	}

	result := SendResult{
		StatusCode: status,
		Err:        strings.TrimSpace(resp.String()),
	}
	if status == 429 {
		result.RetryAfter = retryAfter(resp.Body())
	}
	c.logger.Warn("discord send failed",
		zap.String("channel_id", channelID),
		zap.Int("status", status),
		zap.Duration("retry_after", result.RetryAfter))
	return result
}

// retryAfter reads the retry_after field of a 429 body. Discord reports
// fractional seconds; an unreadable body falls back to one second.
func retryAfter(body []byte) time.Duration {
	var rl rateLimitResponse
	if err := json.Unmarshal(body, &rl); err != nil || rl.RetryAfter <= 0 {
		return time.Second
	}
	return time.Duration(rl.RetryAfter * float64(time.Second))
}

// RoleMentions renders role IDs as Discord mention tokens.
func RoleMentions(roleIDs []string) string {
	mentions := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		if id == "" {
			continue
		}
		mentions = append(mentions, fmt.Sprintf("<@&%s>", id))
	}
	return strings.Join(mentions, " ")
}

// Ensure Client implements Notifier at compile time.
var _ Notifier = (*Client)(nil)
