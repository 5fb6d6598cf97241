package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stake-mirror-watch/internal/txsubmit"
)

var dec1e18 = decimal.NewFromInt(1_000_000_000_000_000_000)

// SwapOptions parameterise the swap aggregator client.
type SwapOptions struct {
	BaseURL          string
	SUSDTokenAddress string
	Timeout          time.Duration
	UserAgent        string
}

// Swap quotes ETH-for-sUSD swaps against an aggregator's quote API, used
// to price the auxiliary buy of a clear-debt burn.
type Swap struct {
	opts    SwapOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewSwap constructs a swap quote client.
func NewSwap(opts SwapOptions, logger zerolog.Logger) *Swap {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Swap{
		opts:    opts,
		logger:  logger.With().Str("component", "swap_feed").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

type swapQuoteResponse struct {
	SellAmount string `json:"sellAmount"`
	To         string `json:"to"`
	Data       string `json:"data"`
	Value      string `json:"value"`
}

// FetchSwapQuote prices an exact-out buy of the missing sUSD, paid in ETH.
func (s *Swap) FetchSwapQuote(ctx context.Context, missingSUSD decimal.Decimal) (SwapQuote, error) {
	if s.baseURL == "" {
		return SwapQuote{}, errors.New("swap api url not configured")
	}
	if missingSUSD.Sign() <= 0 {
		return SwapQuote{}, errors.New("missing sUSD amount must be positive")
	}

	buyAtoms := missingSUSD.Mul(dec1e18).Round(0)

	params := url.Values{}
	params.Set("sellToken", "ETH")
	params.Set("buyToken", s.opts.SUSDTokenAddress)
	params.Set("buyAmount", buyAtoms.StringFixed(0))

	endpoint := s.baseURL + "/swap/v1/quote?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return SwapQuote{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return SwapQuote{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return SwapQuote{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return SwapQuote{}, fmt.Errorf("swap api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var quote swapQuoteResponse
	if err := json.Unmarshal(payload, &quote); err != nil {
		return SwapQuote{}, err
	}

	sellAtoms, err := decimal.NewFromString(quote.SellAmount)
	if err != nil {
		return SwapQuote{}, fmt.Errorf("parse sell amount: %w", err)
	}
	if sellAtoms.IsZero() {
		return SwapQuote{}, errors.New("swap quote returned zero")
	}

	return SwapQuote{
		RequiredETH: sellAtoms.Div(dec1e18),
		Call: txsubmit.CallDescriptor{
			Contract: quote.To,
			Method:   "swap",
			Args:     []any{quote.Data, quote.Value},
		},
	}, nil
}

var _ SwapQuoteFeed = (*Swap)(nil)
