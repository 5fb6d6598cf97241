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

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stake-mirror-watch/internal/position"
	"stake-mirror-watch/internal/timeline"
)

// SubgraphOptions parameterise the staking subgraph client.
type SubgraphOptions struct {
	BaseURL   string
	Timeout   time.Duration
	PageSize  int
	UserAgent string
}

// Subgraph queries the protocol's issuance subgraph over GraphQL.
type Subgraph struct {
	opts    SubgraphOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewSubgraph constructs a subgraph client.
func NewSubgraph(opts SubgraphOptions, logger zerolog.Logger) *Subgraph {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}

	return &Subgraph{
		opts:    opts,
		logger:  logger.With().Str("component", "subgraph_feed").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// query posts a GraphQL document and returns the raw data payload. A
// non-empty errors array means the whole query is treated as failed.
func (s *Subgraph) query(ctx context.Context, document string) (json.RawMessage, error) {
	if s.baseURL == "" {
		return nil, errors.New("subgraph base url not configured")
	}

	body, err := json.Marshal(graphQLRequest{Query: document})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("subgraph error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var envelope graphQLEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Errors) > 0 {
		return nil, fmt.Errorf("subgraph query failed: %s", envelope.Errors[0].Message)
	}

	return envelope.Data, nil
}

type dailyRecord struct {
	ID        string `json:"id"`
	TotalDebt string `json:"totalDebt"`
}

// FetchIssued returns daily issuance records, newest first from the
// source, normalized to timestamped staking records.
func (s *Subgraph) FetchIssued(ctx context.Context) ([]timeline.StakingRecord, error) {
	document := fmt.Sprintf(`{ dailyIssueds(first: %d, orderBy: id, orderDirection: desc) { id totalDebt } }`, s.opts.PageSize)
	data, err := s.query(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("fetch issued: %w", err)
	}

	var payload struct {
		DailyIssueds []dailyRecord `json:"dailyIssueds"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return parseDailyRecords(payload.DailyIssueds)
}

// FetchBurned returns daily burn records.
func (s *Subgraph) FetchBurned(ctx context.Context) ([]timeline.StakingRecord, error) {
	document := fmt.Sprintf(`{ dailyBurneds(first: %d, orderBy: id, orderDirection: desc) { id totalDebt } }`, s.opts.PageSize)
	data, err := s.query(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("fetch burned: %w", err)
	}

	var payload struct {
		DailyBurneds []dailyRecord `json:"dailyBurneds"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return parseDailyRecords(payload.DailyBurneds)
}

// parseDailyRecords converts raw subgraph rows. The record id doubles as
// the unix timestamp of the daily aggregation bucket.
func parseDailyRecords(rows []dailyRecord) ([]timeline.StakingRecord, error) {
	records := make([]timeline.StakingRecord, 0, len(rows))
	for _, row := range rows {
		ts, err := strconv.ParseInt(row.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse record id %q: %w", row.ID, err)
		}
		debt, err := decimal.NewFromString(row.TotalDebt)
		if err != nil {
			return nil, fmt.Errorf("parse total debt %q: %w", row.TotalDebt, err)
		}
		records = append(records, timeline.StakingRecord{Timestamp: ts, TotalDebt: debt})
	}
	return records, nil
}

// FetchClaims returns the account's fee claim history.
func (s *Subgraph) FetchClaims(ctx context.Context, address string) ([]position.ClaimRecord, error) {
	document := fmt.Sprintf(
		`{ feesClaimeds(first: %d, orderBy: timestamp, orderDirection: desc, where: { account: %q }) { id timestamp } }`,
		s.opts.PageSize, strings.ToLower(address),
	)
	data, err := s.query(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("fetch claims: %w", err)
	}

	var payload struct {
		FeesClaimeds []struct {
			Timestamp string `json:"timestamp"`
		} `json:"feesClaimeds"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	claims := make([]position.ClaimRecord, 0, len(payload.FeesClaimeds))
	for _, row := range payload.FeesClaimeds {
		ts, err := strconv.ParseInt(row.Timestamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse claim timestamp %q: %w", row.Timestamp, err)
		}
		claims = append(claims, position.ClaimRecord{Timestamp: ts})
	}
	return claims, nil
}

var (
	_ IssuanceFeed     = (*Subgraph)(nil)
	_ BurnFeed         = (*Subgraph)(nil)
	_ ClaimHistoryFeed = (*Subgraph)(nil)
)
