package feeds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stake-mirror-watch/internal/timeline"
)

var oneHundred = decimal.NewFromInt(100)

// PerformanceOptions parameterise the mirror fund index client.
type PerformanceOptions struct {
	BaseURL     string
	PoolAddress string
	Period      string
	Timeout     time.Duration
	UserAgent   string
	CacheTTL    time.Duration
}

// Performance queries the external mirror fund's performance-history API.
// An optional redis cache sits in front of the query; the index updates
// slowly so a short TTL saves most round trips.
type Performance struct {
	opts   PerformanceOptions
	logger zerolog.Logger
	client *http.Client
	cache  *redis.Client
}

// NewPerformance constructs the performance index client. cache may be nil.
func NewPerformance(opts PerformanceOptions, cache *redis.Client, logger zerolog.Logger) *Performance {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.Period == "" {
		opts.Period = "1m"
	}

	return &Performance{
		opts:   opts,
		logger: logger.With().Str("component", "performance_feed").Logger(),
		client: &http.Client{Timeout: timeout},
		cache:  cache,
	}
}

type performanceEnvelope struct {
	Data struct {
		PerformanceHistory struct {
			History []performanceRow `json:"history"`
		} `json:"performanceHistory"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type performanceRow struct {
	Performance string `json:"performance"`
	Timestamp   string `json:"timestamp"`
}

// FetchPerformance returns the mirror fund's performance history as
// percentage samples. Application-level errors in the response mark the
// whole query failed, even on HTTP 200.
func (p *Performance) FetchPerformance(ctx context.Context) ([]timeline.PerfSample, error) {
	if p.opts.BaseURL == "" {
		return nil, errors.New("performance api url not configured")
	}
	if p.opts.PoolAddress == "" {
		return nil, errors.New("mirror pool address not configured")
	}

	payload, err := p.fetchRaw(ctx)
	if err != nil {
		return nil, err
	}

	var envelope performanceEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Errors) > 0 {
		return nil, fmt.Errorf("performance query failed: %s", envelope.Errors[0].Message)
	}

	return parsePerformanceRows(envelope.Data.PerformanceHistory.History)
}

func (p *Performance) fetchRaw(ctx context.Context) ([]byte, error) {
	key := p.cacheKey()
	if p.cache != nil {
		if cached, err := p.cache.Get(ctx, key).Bytes(); err == nil {
			p.logger.Debug().Str("key", key).Msg("performance served from cache")
			return cached, nil
		}
	}

	document := fmt.Sprintf(
		`{ performanceHistory(address: %q, period: %q) { history { performance, timestamp } } }`,
		p.opts.PoolAddress, p.opts.Period,
	)
	body, err := json.Marshal(graphQLRequest{Query: document})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(p.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("performance api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if p.cache != nil && p.opts.CacheTTL > 0 {
		if err := p.cache.Set(ctx, key, payload, p.opts.CacheTTL).Err(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to cache performance response")
		}
	}

	return payload, nil
}

func (p *Performance) cacheKey() string {
	return fmt.Sprintf("perf:%s:%s", strings.ToLower(p.opts.PoolAddress), p.opts.Period)
}

// parsePerformanceRows converts raw rows: the source reports performance as
// a fraction and timestamps in milliseconds. The fraction becomes a
// percentage here; the millisecond conversion stays with the reconciler.
func parsePerformanceRows(rows []performanceRow) ([]timeline.PerfSample, error) {
	samples := make([]timeline.PerfSample, 0, len(rows))
	for _, row := range rows {
		perf, err := decimal.NewFromString(row.Performance)
		if err != nil {
			return nil, fmt.Errorf("parse performance %q: %w", row.Performance, err)
		}
		ms, err := strconv.ParseInt(row.Timestamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse performance timestamp %q: %w", row.Timestamp, err)
		}
		samples = append(samples, timeline.PerfSample{
			TimestampMS: ms,
			Performance: perf.Mul(oneHundred),
		})
	}
	return samples, nil
}

var _ PerformanceFeed = (*Performance)(nil)
