// Package discovery finds which assets an account holds: candidate hints from
// an external indexer, balances and collectibles via deployless oracle
// contracts, and balance simulation with nonce-integrity checks.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/chainfolio/internal/batch"
	"github.com/quaylabs/chainfolio/internal/pricing"
)

// CollectionHint says how to discover items of one NFT collection: scan it
// sequentially (enumerable) or probe an explicit id list.
type CollectionHint struct {
	Enumerable bool
	IDs        []*big.Int
}

// HintSet is the candidate-asset universe for one (account, network,
// currency): addresses worth a balance probe. A failed indexer call degrades
// to an empty-but-valid HintSet with Err set instead of aborting discovery.
type HintSet struct {
	ERC20s      []common.Address
	Collections map[common.Address]CollectionHint
	Prices      map[common.Address][]pricing.Price
	HasHints    bool
	Err         error
}

// EmptyHintSet is the degraded stand-in used when the indexer is unreachable.
func EmptyHintSet(err error) HintSet {
	return HintSet{
		Collections: map[common.Address]CollectionHint{},
		Prices:      map[common.Address][]pricing.Price{},
		HasHints:    false,
		Err:         err,
	}
}

// Merge unions previously known hints into fresh ones (array-union per field)
// so a transient indexer outage does not erase known assets. Merging a set
// with itself is a no-op. Freshness and error markers come from fresh.
func Merge(fresh, prev HintSet) HintSet {
	out := HintSet{
		ERC20s:      unionAddrs(fresh.ERC20s, prev.ERC20s),
		Collections: map[common.Address]CollectionHint{},
		Prices:      map[common.Address][]pricing.Price{},
		HasHints:    fresh.HasHints,
		Err:         fresh.Err,
	}
	for a, h := range fresh.Collections {
		out.Collections[a] = h
	}
	for a, h := range prev.Collections {
		cur, ok := out.Collections[a]
		if !ok {
			out.Collections[a] = h
			continue
		}
		out.Collections[a] = CollectionHint{
			Enumerable: cur.Enumerable || h.Enumerable,
			IDs:        unionBig(cur.IDs, h.IDs),
		}
	}
	for a, p := range fresh.Prices {
		out.Prices[a] = p
	}
	for a, p := range prev.Prices {
		if _, ok := out.Prices[a]; !ok {
			out.Prices[a] = p
		}
	}
	return out
}

func unionAddrs(a, b []common.Address) []common.Address {
	out := make([]common.Address, 0, len(a)+len(b))
	seen := make(map[common.Address]bool, len(a)+len(b))
	for _, s := range [][]common.Address{a, b} {
		for _, x := range s {
			if !seen[x] {
				seen[x] = true
				out = append(out, x)
			}
		}
	}
	return out
}

func unionBig(a, b []*big.Int) []*big.Int {
	out := make([]*big.Int, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range [][]*big.Int{a, b} {
		for _, x := range s {
			k := x.String()
			if !seen[k] {
				seen[k] = true
				out = append(out, x)
			}
		}
	}
	return out
}

// ---------- Indexer client ----------

type hintsPayload struct {
	ERC20s   []string                      `json:"erc20s"`
	ERC721s  map[string]collectionPayload  `json:"erc721s"`
	Prices   map[string]map[string]float64 `json:"prices"`
	HasHints bool                          `json:"hasHints"`
}

type collectionPayload struct {
	Enumerable bool     `json:"enumerable"`
	Tokens     []string `json:"tokens"`
}

// IndexerClient queries the external asset indexer. It is best-effort by
// contract: callers get a degraded HintSet on any failure.
type IndexerClient struct {
	base  string
	httpc *http.Client
}

func NewIndexerClient(base string) *IndexerClient {
	return &IndexerClient{
		base:  strings.TrimRight(strings.TrimSpace(base), "/"),
		httpc: &http.Client{Timeout: 12 * time.Second},
	}
}

// HintsBatch fetches hints for several accounts on one network/currency in a
// single round trip.
func (ic *IndexerClient) HintsBatch(ctx context.Context, network string, accounts []common.Address, currency string) (map[common.Address]HintSet, error) {
	addrs := make([]string, len(accounts))
	for i, a := range accounts {
		addrs[i] = a.Hex()
	}
	u := fmt.Sprintf("%s/v2/hints/%s?accounts=%s&currency=%s",
		ic.base, network, strings.Join(addrs, ","), currency)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := ic.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("indexer: http %d", resp.StatusCode)
	}
	raw := make(map[string]hintsPayload)
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("indexer: decode: %w", err)
	}

	out := make(map[common.Address]HintSet, len(raw))
	for acc, p := range raw {
		if !common.IsHexAddress(acc) {
			continue
		}
		out[common.HexToAddress(acc)] = parseHints(p, currency)
	}
	return out, nil
}

func parseHints(p hintsPayload, currency string) HintSet {
	hs := HintSet{
		Collections: map[common.Address]CollectionHint{},
		Prices:      map[common.Address][]pricing.Price{},
		HasHints:    p.HasHints,
	}
	for _, a := range p.ERC20s {
		if common.IsHexAddress(a) {
			hs.ERC20s = append(hs.ERC20s, common.HexToAddress(a))
		}
	}
	for a, c := range p.ERC721s {
		if !common.IsHexAddress(a) {
			continue
		}
		h := CollectionHint{Enumerable: c.Enumerable}
		for _, id := range c.Tokens {
			if n, ok := new(big.Int).SetString(id, 10); ok {
				h.IDs = append(h.IDs, n)
			}
		}
		hs.Collections[common.HexToAddress(a)] = h
	}
	for a, quotes := range p.Prices {
		if !common.IsHexAddress(a) {
			continue
		}
		addr := common.HexToAddress(a)
		for cur, v := range quotes {
			if currency == "" || cur == currency {
				hs.Prices[addr] = append(hs.Prices[addr], pricing.Price{Currency: cur, Value: v})
			}
		}
	}
	return hs
}

// ---------- Batched hint fetching ----------

type hintQuery struct {
	Account  common.Address
	Currency string
}

// HintFetcher routes hint lookups through the batching framework: queries
// landing in the same window and currency share one indexer round trip.
type HintFetcher struct {
	network string
	batcher *batch.Batcher[hintQuery, HintSet]
}

func NewHintFetcher(client *IndexerClient, network string, window time.Duration) *HintFetcher {
	f := &HintFetcher{network: network}
	segment := func(pending []batch.Request[hintQuery]) []batch.Group[hintQuery] {
		buckets := map[string][]batch.Request[hintQuery]{}
		order := []string{}
		for _, r := range pending {
			cur := r.Data.Currency
			if _, seen := buckets[cur]; !seen {
				order = append(order, cur)
			}
			buckets[cur] = append(buckets[cur], r)
		}
		groups := make([]batch.Group[hintQuery], 0, len(order))
		for _, cur := range order {
			groups = append(groups, batch.Group[hintQuery]{Tag: cur, Items: buckets[cur]})
		}
		return groups
	}
	exec := func(ctx context.Context, g batch.Group[hintQuery]) (map[string]HintSet, error) {
		accounts := make([]common.Address, len(g.Items))
		for i, it := range g.Items {
			accounts[i] = it.Data.Account
		}
		res, err := client.HintsBatch(ctx, network, accounts, g.Tag)
		if err != nil {
			return nil, err
		}
		out := make(map[string]HintSet, len(g.Items))
		for _, it := range g.Items {
			if hs, ok := res[it.Data.Account]; ok {
				out[it.Key] = hs
			}
		}
		return out, nil
	}
	f.batcher = batch.New(window, segment, exec)
	return f
}

// Hints fetches the candidate set for one account. Failure is not fatal: the
// returned HintSet is empty, carries the error and keeps discovery going.
func (f *HintFetcher) Hints(ctx context.Context, account common.Address, currency string) HintSet {
	key := strings.ToLower(account.Hex()) + "/" + currency
	hs, err := f.batcher.Do(ctx, key, hintQuery{Account: account, Currency: currency})
	if err != nil {
		return EmptyHintSet(err)
	}
	return hs
}
