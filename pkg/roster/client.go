// Package roster fetches the public clan member export from the hiscores
// service and normalises names for matching against tracked members.
package roster

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/rs24k/captracker/pkg/apperrors"
	"github.com/rs24k/captracker/pkg/cache"
	"github.com/rs24k/captracker/pkg/config"
)

// Entry is one row of the clan member export.
type Entry struct {
	Name           string `json:"name"`
	NameNormalised string `json:"name_normalised"`
	Rank           string `json:"rank"`
}

// Client fetches clan rosters, caching results per clan so promotion checks
// across many members in one cycle hit the upstream once.
type Client struct {
	http     *resty.Client
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewClient creates a roster client. The cache may be shared with other
// components; keys are namespaced under "roster:".
func NewClient(cfg *config.RosterConfig, c cache.Cache, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "RS24K-Tracker/1.0 (clan roster)").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Client{
		http:     httpClient,
		cache:    c,
		cacheTTL: cfg.CacheTTL,
		logger:   logger,
	}
}

// Fetch returns the current roster for clanName, serving from cache when a
// fresh copy exists.
func (c *Client) Fetch(ctx context.Context, clanName string) ([]Entry, error) {
	cacheKey := "roster:" + NormaliseName(clanName)
	if cached, ok, err := c.cache.Get(ctx, cacheKey); err == nil && ok {
		var entries []Entry
		if err := json.Unmarshal(cached, &entries); err == nil {
			return entries, nil
		}
		// A corrupt cache entry is not fatal; fall through to a live fetch.
		_ = c.cache.Delete(ctx, cacheKey)
	}

	entries, err := c.fetchLive(ctx, clanName)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(entries); err == nil {
		if err := c.cache.Set(ctx, cacheKey, payload, c.cacheTTL); err != nil {
			c.logger.Warn("failed to cache roster", zap.String("clan", clanName), zap.Error(err))
		}
	}
	return entries, nil
}

func (c *Client) fetchLive(ctx context.Context, clanName string) ([]Entry, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("clanName", clanName).
		Get("/members_lite.ws")
	if err != nil {
		return nil, fmt.Errorf("%w: roster request: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: roster returned status %d", apperrors.ErrUpstreamUnavailable, resp.StatusCode())
	}

	entries, err := parseRosterCSV(resp.String())
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched clan roster",
		zap.String("clan", clanName),
		zap.Int("members", len(entries)))
	return entries, nil
}

// parseRosterCSV parses the members_lite export. The export uses no-break
// spaces inside names; those are folded to regular spaces before parsing.
func parseRosterCSV(body string) ([]Entry, error) {
	body = strings.ReplaceAll(body, "\u00a0", " ")

	reader := csv.NewReader(strings.NewReader(body))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: roster csv: %v", apperrors.ErrUpstreamDataInvalid, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: roster export was empty", apperrors.ErrUpstreamDataInvalid)
	}

	entries := make([]Entry, 0, len(records)-1)
	for i, record := range records {
		if i == 0 {
			// Header row: "Clanmate, Clan Rank, Total XP, Kills".
			continue
		}
		if len(record) < 2 {
			continue
		}
		name := strings.TrimSpace(record[0])
		rank := strings.TrimSpace(record[1])
		if name == "" {
			continue
		}
		entries = append(entries, Entry{
			Name:           name,
			NameNormalised: NormaliseName(name),
			Rank:           rank,
		})
	}
	return entries, nil
}

// Lookup finds the roster entry whose normalised name matches rsn.
func Lookup(entries []Entry, rsn string) (Entry, bool) {
	key := NormaliseName(rsn)
	for _, e := range entries {
		if e.NameNormalised == key {
			return e, true
		}
	}
	return Entry{}, false
}
