// Package runemetrics fetches and parses the RuneMetrics profile feed: the
// per-player activity log and the per-skill XP values used for snapshots.
package runemetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/rs24k/captracker/pkg/apperrors"
	"github.com/rs24k/captracker/pkg/retry"
)

// RawActivity is one entry of the profile's activity log, as delivered.
type RawActivity struct {
	Date    string `json:"date"`
	Details string `json:"details"`
	Text    string `json:"text"`
}

// RawSkillValue is one entry of the profile's skill list, as delivered.
// XP is in the feed's tenth-of-a-point representation.
type RawSkillValue struct {
	ID    int             `json:"id"`
	Level json.Number     `json:"level"`
	XP    json.Number     `json:"xp"`
	Rank  json.RawMessage `json:"rank,omitempty"`
}

// Profile is the decoded profile payload.
type Profile struct {
	Name        string          `json:"name"`
	Activities  []RawActivity   `json:"activities"`
	SkillValues []RawSkillValue `json:"skillvalues"`
	TotalXP     json.Number     `json:"totalxp"`
	TotalSkill  json.Number     `json:"totalskill"`
	Error       string          `json:"error,omitempty"`
}

// Client fetches profiles from the RuneMetrics API.
type Client struct {
	http   *resty.Client
	retry  *retry.Config
	logger *zap.Logger
}

// Options configures the profile client.
type Options struct {
	BaseURL        string
	ConnectTimeout time.Duration
	Timeout        time.Duration
}

// NewClient creates a profile client.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 25 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json,text/plain,*/*").
		SetHeader("User-Agent", "RS24K-Tracker/1.0 (RuneMetrics ingest)")

	if opts.ConnectTimeout > 0 {
		httpClient.SetTransport(&http.Transport{
			DialContext: (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext,
		})
	}

	return &Client{
		http:   httpClient,
		retry:  retry.DefaultConfig(),
		logger: logger,
	}
}

// FetchProfile fetches a player's profile with the most recent activities.
// Returns apperrors.ErrPrivateProfile when the upstream marks the profile
// private, apperrors.ErrUpstreamUnavailable for transport/status failures
// and apperrors.ErrUpstreamDataInvalid for undecodable payloads.
func (c *Client) FetchProfile(ctx context.Context, rsn string, activities int) (*Profile, error) {
	user := strings.ReplaceAll(strings.TrimSpace(rsn), " ", "_")

	// Transient upstream failures (5xx, timeouts) are retried with backoff;
	// private profiles and malformed payloads are permanent and are not.
	var profile *Profile
	err := retry.DoIfRetryable(ctx, c.retry, func() error {
		p, err := c.fetchOnce(ctx, user, rsn, activities)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched profile",
		zap.String("rsn", rsn),
		zap.Int("activities", len(profile.Activities)),
		zap.Int("skills", len(profile.SkillValues)),
	)

	return profile, nil
}

func (c *Client) fetchOnce(ctx context.Context, user, rsn string, activities int) (*Profile, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("user", user).
		SetQueryParam("activities", fmt.Sprintf("%d", activities)).
		Get("/profile/profile")
	if err != nil {
		return nil, fmt.Errorf("%w: profile fetch for %q: %v", apperrors.ErrUpstreamUnavailable, rsn, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: profile fetch for %q: HTTP %d", apperrors.ErrUpstreamUnavailable, rsn, resp.StatusCode())
	}

	var profile Profile
	if err := json.Unmarshal(resp.Body(), &profile); err != nil {
		return nil, fmt.Errorf("%w: profile for %q: %v", apperrors.ErrUpstreamDataInvalid, rsn, err)
	}

	if profile.Error != "" {
		// Private profiles come back as a valid payload with an error field
		// and no activities/XP. They are a status, not a failure.
		if profile.Error == "PROFILE_PRIVATE" {
			return nil, apperrors.ErrPrivateProfile
		}
		return nil, fmt.Errorf("%w: profile for %q: upstream error %q", apperrors.ErrUpstreamDataInvalid, rsn, profile.Error)
	}

	return &profile, nil
}
