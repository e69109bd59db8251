package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// The price provider caps contract addresses per request; pages are sized to
// stay under it.
const AddressesPerRequest = 100

// Client talks to a coingecko-shaped price API. Responses map lower-cased
// asset ids/addresses to {currency -> price}; absent assets simply stay
// unpriced.
type Client struct {
	base   string
	apiKey string
	httpc  *http.Client
}

func NewClient(base, apiKey string) *Client {
	return &Client{
		base:   strings.TrimRight(strings.TrimSpace(base), "/"),
		apiKey: apiKey,
		httpc:  &http.Client{Timeout: 12 * time.Second},
	}
}

// TokenPrices quotes contract tokens on one platform in one currency.
func (c *Client) TokenPrices(ctx context.Context, platform string, addrs []common.Address, currency string) (map[string]map[string]float64, error) {
	lowered := make([]string, len(addrs))
	for i, a := range addrs {
		lowered[i] = strings.ToLower(a.Hex())
	}
	q := url.Values{}
	q.Set("contract_addresses", strings.Join(lowered, ","))
	q.Set("vs_currencies", currency)
	return c.get(ctx, "/simple/token_price/"+url.PathEscape(platform), q)
}

// NativePrice quotes the chain-native coin by provider coin id.
func (c *Client) NativePrice(ctx context.Context, coinID, currency string) (map[string]map[string]float64, error) {
	q := url.Values{}
	q.Set("ids", coinID)
	q.Set("vs_currencies", currency)
	return c.get(ctx, "/simple/price", q)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (map[string]map[string]float64, error) {
	if c.apiKey != "" {
		q.Set("x_api_key", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, "GET", c.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("price api: http %d", resp.StatusCode)
	}
	out := make(map[string]map[string]float64)
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("price api: decode: %w", err)
	}
	return out, nil
}
