package discovery

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/chainfolio/internal/pricing"
)

func hexAddr(n byte) common.Address {
	var a common.Address
	a[19] = n
	return a
}

func TestMerge_UnionsEverything(t *testing.T) {
	fresh := HintSet{
		ERC20s: []common.Address{hexAddr(1), hexAddr(2)},
		Collections: map[common.Address]CollectionHint{
			hexAddr(10): {Enumerable: false, IDs: []*big.Int{big.NewInt(1)}},
		},
		Prices: map[common.Address][]pricing.Price{
			hexAddr(1): {{Currency: "usd", Value: 2.0}},
		},
		HasHints: true,
	}
	prev := HintSet{
		ERC20s: []common.Address{hexAddr(2), hexAddr(3)},
		Collections: map[common.Address]CollectionHint{
			hexAddr(10): {Enumerable: true, IDs: []*big.Int{big.NewInt(2)}},
			hexAddr(11): {Enumerable: false, IDs: []*big.Int{big.NewInt(5)}},
		},
		Prices: map[common.Address][]pricing.Price{
			hexAddr(1): {{Currency: "usd", Value: 1.0}}, // stale, fresh wins
			hexAddr(3): {{Currency: "usd", Value: 9.0}},
		},
	}

	got := Merge(fresh, prev)

	if len(got.ERC20s) != 3 {
		t.Fatalf("expected 3 erc20s, got %v", got.ERC20s)
	}
	c10 := got.Collections[hexAddr(10)]
	if !c10.Enumerable {
		t.Fatal("enumerable flag must survive the merge")
	}
	if len(c10.IDs) != 2 {
		t.Fatalf("collection ids not unioned: %v", c10.IDs)
	}
	if _, ok := got.Collections[hexAddr(11)]; !ok {
		t.Fatal("previous-only collection dropped")
	}
	if got.Prices[hexAddr(1)][0].Value != 2.0 {
		t.Fatal("fresh price must win over previous")
	}
	if got.Prices[hexAddr(3)][0].Value != 9.0 {
		t.Fatal("previous-only price dropped")
	}
	if !got.HasHints {
		t.Fatal("freshness marker must come from fresh")
	}
}

func TestMerge_Idempotent(t *testing.T) {
	hs := HintSet{
		ERC20s: []common.Address{hexAddr(1)},
		Collections: map[common.Address]CollectionHint{
			hexAddr(10): {IDs: []*big.Int{big.NewInt(7)}},
		},
		Prices:   map[common.Address][]pricing.Price{},
		HasHints: true,
	}
	got := Merge(hs, hs)
	if len(got.ERC20s) != 1 {
		t.Fatalf("self-merge duplicated erc20s: %v", got.ERC20s)
	}
	if len(got.Collections[hexAddr(10)].IDs) != 1 {
		t.Fatalf("self-merge duplicated ids: %v", got.Collections[hexAddr(10)].IDs)
	}
}

func TestHintFetcher_BatchesAndParses(t *testing.T) {
	accA := hexAddr(0xA1)
	accB := hexAddr(0xB2)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.HasPrefix(r.URL.Path, "/v2/hints/testnet") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		accounts := strings.Split(r.URL.Query().Get("accounts"), ",")
		if len(accounts) != 2 {
			t.Errorf("expected both accounts in one round trip, got %v", accounts)
		}
		resp := map[string]any{}
		for _, acc := range accounts {
			resp[acc] = map[string]any{
				"erc20s": []string{hexAddr(1).Hex()},
				"erc721s": map[string]any{
					hexAddr(10).Hex(): map[string]any{"enumerable": true, "tokens": []string{"3"}},
				},
				"prices": map[string]map[string]float64{
					hexAddr(1).Hex(): {"usd": 1.25, "eur": 1.10},
				},
				"hasHints": true,
			}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	f := NewHintFetcher(NewIndexerClient(srv.URL), "testnet", 10*time.Millisecond)

	type res struct{ hs HintSet }
	ch := make(chan res, 2)
	for _, acc := range []common.Address{accA, accB} {
		go func(acc common.Address) {
			ch <- res{f.Hints(context.Background(), acc, "usd")}
		}(acc)
	}
	for i := 0; i < 2; i++ {
		r := <-ch
		if r.hs.Err != nil {
			t.Fatalf("hints failed: %v", r.hs.Err)
		}
		if !r.hs.HasHints || len(r.hs.ERC20s) != 1 {
			t.Fatalf("bad hint set: %+v", r.hs)
		}
		c := r.hs.Collections[hexAddr(10)]
		if !c.Enumerable || len(c.IDs) != 1 || c.IDs[0].Int64() != 3 {
			t.Fatalf("bad collection hint: %+v", c)
		}
		// Only the requested currency survives parsing.
		quotes := r.hs.Prices[hexAddr(1)]
		if len(quotes) != 1 || quotes[0].Currency != "usd" || quotes[0].Value != 1.25 {
			t.Fatalf("bad prices: %+v", quotes)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one indexer round trip, got %d", hits.Load())
	}
}

func TestHintFetcher_DegradesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewHintFetcher(NewIndexerClient(srv.URL), "testnet", time.Millisecond)
	hs := f.Hints(context.Background(), hexAddr(0xA1), "usd")

	if hs.Err == nil {
		t.Fatal("expected the indexer error to be carried")
	}
	if hs.HasHints || len(hs.ERC20s) != 0 {
		t.Fatalf("degraded set must be empty: %+v", hs)
	}
	if hs.Collections == nil || hs.Prices == nil {
		t.Fatal("degraded set must still be usable")
	}
}
