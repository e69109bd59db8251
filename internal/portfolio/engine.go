package portfolio

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/chainfolio/internal/batch"
	"github.com/quaylabs/chainfolio/internal/discovery"
	"github.com/quaylabs/chainfolio/internal/pricing"
)

// Page sizes per deployless capability. State-override pages are only bounded
// by helper gas; proxy pages must keep the whole helper initcode plus args
// under the call-data ceiling.
const (
	pageSizeOverride = 100
	pageSizeProxy    = 40
)

// BalanceSource is what the engine needs from the oracle layer; satisfied by
// *discovery.Oracle.
type BalanceSource interface {
	StateOverrideSupported(ctx context.Context) bool
	Balances(ctx context.Context, account common.Address, tokens []common.Address, blockTag string, sim *discovery.SimulationParams) ([]discovery.TokenInfo, error)
	NFTs(ctx context.Context, account common.Address, collections []discovery.CollectionQuery, limit uint64, blockTag string, sim *discovery.SimulationParams) ([]discovery.CollectionInfo, error)
}

// HintSource is what the engine needs from the indexer layer; satisfied by
// *discovery.HintFetcher.
type HintSource interface {
	Hints(ctx context.Context, account common.Address, currency string) discovery.HintSet
}

// PriceSource is what the engine needs from the pricing layer; satisfied by
// *pricing.Pipeline.
type PriceSource interface {
	Resolve(ctx context.Context, queries []pricing.AssetQuery, cache *pricing.Cache, maxAge time.Duration) map[common.Address][]pricing.Price
}

// GetOptions tune one portfolio snapshot.
type GetOptions struct {
	Currencies    []string // defaults to ["usd"]
	BlockTag      string   // defaults to "latest"
	PreviousHints *discovery.HintSet
	PriceCache    *pricing.Cache // caller-owned; created when nil
	PriceRecency  time.Duration
	NFTScanLimit  uint64
	Simulation    *discovery.SimulationParams
}

// Engine wires hints, oracles and pricing into the single Get entry point.
type Engine struct {
	oracle  BalanceSource
	hints   HintSource
	prices  PriceSource
	network Network
	Logf    func(format string, a ...any)
}

func New(oracle BalanceSource, hints HintSource, prices PriceSource, network Network) *Engine {
	return &Engine{oracle: oracle, hints: hints, prices: prices, network: network}
}

func (e *Engine) logf(format string, a ...any) {
	if e.Logf != nil {
		e.Logf(format, a...)
	}
}

type pageOutcome[T any] struct {
	items []T
	err   error
}

// Get produces the balances-and-collections snapshot for one account. Output
// order follows hint order; per-asset failures become TokenErrors, never
// rejections. Only a SimulationError aborts the whole call.
func (e *Engine) Get(ctx context.Context, account common.Address, opts GetOptions) (*Result, error) {
	currencies := opts.Currencies
	if len(currencies) == 0 {
		currencies = []string{"usd"}
	}
	cache := opts.PriceCache
	if cache == nil {
		cache = pricing.NewCache()
	}
	nftLimit := opts.NFTScanLimit
	if nftLimit == 0 {
		nftLimit = 50
	}

	var timing Timing

	// Hints, degraded on failure rather than fatal.
	discoveryStart := time.Now()
	hints := e.hints.Hints(ctx, account, currencies[0])
	if hints.Err != nil {
		e.logf("indexer degraded: %v", hints.Err)
	}
	if opts.PreviousHints != nil {
		hints = discovery.Merge(hints, *opts.PreviousHints)
	}
	for addr, prices := range hints.Prices {
		cache.Seed(addr, prices)
	}
	timing.Discovery = time.Since(discoveryStart)

	// Page-size ceiling follows the detected node capability.
	pageSize := pageSizeProxy
	if e.oracle.StateOverrideSupported(ctx) {
		pageSize = pageSizeOverride
	}

	// The native asset is always a candidate, ahead of hinted tokens. Hints
	// may repeat an address (or carry the zero address); each asset is probed
	// once.
	tokens := make([]common.Address, 0, len(hints.ERC20s)+1)
	tokens = append(tokens, common.Address{})
	seen := map[common.Address]bool{{}: true}
	for _, a := range hints.ERC20s {
		if !seen[a] {
			seen[a] = true
			tokens = append(tokens, a)
		}
	}
	collections := make([]discovery.CollectionQuery, 0, len(hints.Collections))
	for _, addr := range sortedCollectionAddrs(hints) {
		h := hints.Collections[addr]
		collections = append(collections, discovery.CollectionQuery{
			Address: addr, Enumerable: h.Enumerable, IDs: h.IDs,
		})
	}

	oracleStart := time.Now()
	tokenPages := batch.Paginate(tokens, pageSize)
	nftPages := batch.Paginate(collections, pageSize)

	tokenOut := make([]pageOutcome[discovery.TokenInfo], len(tokenPages))
	nftOut := make([]pageOutcome[discovery.CollectionInfo], len(nftPages))

	// All pages run concurrently; one page failing must not cancel siblings,
	// so a plain join is used instead of a cancelling group.
	var wg sync.WaitGroup
	for i, page := range tokenPages {
		wg.Add(1)
		go func(i int, page []common.Address) {
			defer wg.Done()
			items, err := e.oracle.Balances(ctx, account, page, opts.BlockTag, opts.Simulation)
			tokenOut[i] = pageOutcome[discovery.TokenInfo]{items: items, err: err}
		}(i, page)
	}
	for i, page := range nftPages {
		wg.Add(1)
		go func(i int, page []discovery.CollectionQuery) {
			defer wg.Done()
			items, err := e.oracle.NFTs(ctx, account, page, nftLimit, opts.BlockTag, opts.Simulation)
			nftOut[i] = pageOutcome[discovery.CollectionInfo]{items: items, err: err}
		}(i, page)
	}
	wg.Wait()
	timing.OracleCall = time.Since(oracleStart)

	// A violated simulation invariant poisons the whole snapshot.
	for _, out := range tokenOut {
		var simErr *discovery.SimulationError
		if errors.As(out.err, &simErr) {
			return nil, simErr
		}
	}
	for _, out := range nftOut {
		var simErr *discovery.SimulationError
		if errors.As(out.err, &simErr) {
			return nil, simErr
		}
	}

	res := &Result{
		Total:      map[string]float64{},
		PriceCache: cache,
		Hints:      hints,
	}

	// Filter: positive amount, no item error, non-empty symbol.
	for i, out := range tokenOut {
		if out.err != nil {
			for _, addr := range tokenPages[i] {
				res.TokenErrors = append(res.TokenErrors, TokenError{Address: addr, Reason: out.err.Error()})
			}
			continue
		}
		for _, info := range out.items {
			if len(info.Err) > 0 {
				res.TokenErrors = append(res.TokenErrors, TokenError{Address: info.Address, Reason: discovery.DecodeItemError(info.Err)})
				continue
			}
			if info.Amount == nil || info.Amount.Sign() <= 0 || info.Symbol == "" {
				continue
			}
			res.Tokens = append(res.Tokens, TokenResult{
				Address:              info.Address,
				Symbol:               info.Symbol,
				Amount:               info.Amount,
				AmountPostSimulation: info.AmountAfter,
				Decimals:             info.Decimals,
				Network:              e.network.ID,
			})
		}
	}
	for _, out := range nftOut {
		if out.err != nil {
			e.logf("nft page failed: %v", out.err)
			continue
		}
		for _, info := range out.items {
			if len(info.Err) > 0 || len(info.IDs) == 0 {
				continue
			}
			res.Collections = append(res.Collections, CollectionResult{
				Address:           info.Address,
				Name:              info.Name,
				Symbol:            info.Symbol,
				IDs:               info.IDs,
				IDsPostSimulation: info.IDsAfter,
				Network:           e.network.ID,
			})
		}
	}

	// Prices for the survivors, written back into the caller's cache.
	priceStart := time.Now()
	queries := make([]pricing.AssetQuery, 0, len(res.Tokens)*len(currencies))
	for _, t := range res.Tokens {
		for _, cur := range currencies {
			queries = append(queries, pricing.AssetQuery{
				Address:  t.Address,
				Currency: cur,
				Native:   t.Address == (common.Address{}),
			})
		}
	}
	priced := e.prices.Resolve(ctx, queries, cache, opts.PriceRecency)
	for i := range res.Tokens {
		res.Tokens[i].Prices = priced[res.Tokens[i].Address]
	}
	timing.PriceUpdate = time.Since(priceStart)

	// Per-currency total over tokens that carry a quote in that currency.
	for _, t := range res.Tokens {
		for _, p := range t.Prices {
			res.Total[p.Currency] += tokenValue(t.Amount, t.Decimals, p.Value)
		}
	}

	res.Timing = timing
	e.logf("portfolio: %d tokens, %d collections, %d errors (discovery=%s oracle=%s price=%s)",
		len(res.Tokens), len(res.Collections), len(res.TokenErrors),
		timing.Discovery, timing.OracleCall, timing.PriceUpdate)
	return res, nil
}

// tokenValue is amount / 10^decimals * price, computed in rationals to avoid
// float drift on large raw amounts.
func tokenValue(amount *big.Int, decimals uint8, price float64) float64 {
	if amount == nil {
		return 0
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	units := new(big.Rat).SetFrac(amount, scale)
	pr := new(big.Rat).SetFloat64(price)
	if pr == nil {
		return 0
	}
	v, _ := new(big.Rat).Mul(units, pr).Float64()
	return v
}

// sortedCollectionAddrs keeps collection order deterministic across runs;
// hint order for map-backed collections is fixed by address.
func sortedCollectionAddrs(hints discovery.HintSet) []common.Address {
	addrs := make([]common.Address, 0, len(hints.Collections))
	for a := range hints.Collections {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Hex() < addrs[j].Hex() })
	return addrs
}
