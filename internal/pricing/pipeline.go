package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/chainfolio/internal/batch"
)

// AssetQuery asks for one {asset, currency} quote. Native assets go through
// the provider's coin lookup instead of the contract-address one.
type AssetQuery struct {
	Address  common.Address
	Currency string
	Native   bool
}

func (q AssetQuery) key() string {
	return strings.ToLower(q.Address.Hex()) + "/" + q.Currency
}

// Pipeline batches price lookups across concurrent callers, segments them by
// (currency, native-vs-contract), pages each segment to the provider address
// limit and writes fresh quotes back into the caller's cache.
type Pipeline struct {
	client   *Client
	platform string // provider platform id for contract-token lookups
	nativeID string // provider coin id for the chain-native asset
	batcher  *batch.Batcher[AssetQuery, Price]
}

func NewPipeline(client *Client, platform, nativeID string, window time.Duration) *Pipeline {
	p := &Pipeline{client: client, platform: platform, nativeID: nativeID}
	p.batcher = batch.New(window, p.segment, p.fetch)
	return p
}

// segment groups the pending queue by target currency and by native/contract
// kind, then pages oversized contract groups to the provider limit.
func (p *Pipeline) segment(pending []batch.Request[AssetQuery]) []batch.Group[AssetQuery] {
	buckets := make(map[string][]batch.Request[AssetQuery])
	order := []string{}
	for _, r := range pending {
		tag := r.Data.Currency
		if r.Data.Native {
			tag += "/native"
		} else {
			tag += "/token"
		}
		if _, seen := buckets[tag]; !seen {
			order = append(order, tag)
		}
		buckets[tag] = append(buckets[tag], r)
	}

	var groups []batch.Group[AssetQuery]
	for _, tag := range order {
		for i, page := range batch.Paginate(buckets[tag], AddressesPerRequest) {
			groups = append(groups, batch.Group[AssetQuery]{
				Tag:   fmt.Sprintf("%s/%d", tag, i),
				Items: page,
			})
		}
	}
	return groups
}

// fetch performs one provider round trip for a group. Assets missing from the
// response are left out of the result map; the batcher reports ErrNoResult to
// just those waiters.
func (p *Pipeline) fetch(ctx context.Context, g batch.Group[AssetQuery]) (map[string]Price, error) {
	if len(g.Items) == 0 {
		return nil, nil
	}
	currency := g.Items[0].Data.Currency
	out := make(map[string]Price, len(g.Items))

	if g.Items[0].Data.Native {
		res, err := p.client.NativePrice(ctx, p.nativeID, currency)
		if err != nil {
			return nil, err
		}
		quotes, ok := res[p.nativeID]
		if !ok {
			return out, nil
		}
		if v, ok := quotes[currency]; ok {
			for _, it := range g.Items {
				out[it.Key] = Price{Currency: currency, Value: v}
			}
		}
		return out, nil
	}

	addrs := make([]common.Address, len(g.Items))
	for i, it := range g.Items {
		addrs[i] = it.Data.Address
	}
	res, err := p.client.TokenPrices(ctx, p.platform, addrs, currency)
	if err != nil {
		return nil, err
	}
	for _, it := range g.Items {
		quotes, ok := res[strings.ToLower(it.Data.Address.Hex())]
		if !ok {
			continue
		}
		if v, ok := quotes[currency]; ok {
			out[it.Key] = Price{Currency: currency, Value: v}
		}
	}
	return out, nil
}

// Resolve answers every query either from cache (entries younger than maxAge,
// or discovery-seeded) or through the batched provider. Fetched quotes are
// appended to the cache as they land; unresolvable assets are simply absent
// from the returned map.
func (p *Pipeline) Resolve(ctx context.Context, queries []AssetQuery, cache *Cache, maxAge time.Duration) map[common.Address][]Price {
	found := make(map[common.Address][]Price)
	var mu sync.Mutex
	add := func(addr common.Address, pr Price) {
		mu.Lock()
		found[addr] = append(found[addr], pr)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for _, q := range queries {
		// Freshness is per (asset, currency): a fresh entry that lacks the
		// requested currency must not strand the query, it falls through to
		// the provider.
		if cached, ok := cache.Lookup(q.Address, maxAge); ok {
			hit := false
			for _, pr := range cached {
				if pr.Currency == q.Currency {
					add(q.Address, pr)
					hit = true
				}
			}
			if hit {
				continue
			}
		}
		wg.Add(1)
		go func(q AssetQuery) {
			defer wg.Done()
			pr, err := p.batcher.Do(ctx, q.key(), q)
			if err != nil {
				return // missing or failed quote leaves the asset unpriced
			}
			cache.Put(q.Address, []Price{pr})
			add(q.Address, pr)
		}(q)
	}
	wg.Wait()
	return found
}
