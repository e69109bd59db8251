package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/quaylabs/chainfolio/internal/config"
	"github.com/quaylabs/chainfolio/internal/discovery"
	"github.com/quaylabs/chainfolio/internal/portfolio"
	"github.com/quaylabs/chainfolio/internal/pricing"
)

// newRPCClientWithTimeout dials RPC with keep-alives and sane timeouts.
func newRPCClientWithTimeout(rpcURL string, timeout time.Duration) (*rpc.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:       100,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
	return rpc.DialHTTPWithClient(rpcURL, httpClient)
}

func main() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	var (
		accountHex = flag.String("account", "", "Account address to scan")
		probeOnly  = flag.Bool("probe", false, "Only probe node capabilities and exit")
		watchEvery = flag.Duration("watch", 0, "Re-scan interval (0 = run once)")
	)
	flag.Parse()

	st := config.Load()
	ctx := context.Background()

	rc, err := newRPCClientWithTimeout(st.RPCURL, st.RPCTimeout)
	must(err, "dial RPC")

	fmt.Println("=== CONFIG (.env) ===")
	fmt.Println("RPC_URL        :", st.RPCURL)
	fmt.Println("INDEXER_URL    :", st.IndexerURL)
	fmt.Println("PRICE_API_URL  :", st.PriceAPIURL)
	fmt.Println("NETWORK        :", st.Network)
	fmt.Println("NATIVE_SYMBOL  :", st.NativeSymbol)
	fmt.Println("CURRENCIES     :", st.Currencies)
	fmt.Println("=====================")

	oracle, err := discovery.NewOracle(rc, st.NativeSymbol)
	must(err, "init oracle")

	if *probeOnly {
		if oracle.StateOverrideSupported(ctx) {
			fmt.Println("state override: supported (large discovery pages)")
		} else {
			fmt.Println("state override: NOT supported (proxy mode, small pages)")
		}
		return
	}

	if *accountHex == "" || !common.IsHexAddress(*accountHex) {
		die("missing or invalid -account address")
	}
	account := common.HexToAddress(*accountHex)

	hints := discovery.NewHintFetcher(discovery.NewIndexerClient(st.IndexerURL), st.Network, st.BatchWindow)
	prices := pricing.NewPipeline(pricing.NewClient(st.PriceAPIURL, st.PriceAPIKey), st.Platform, st.NativeCoinID, st.BatchWindow)

	engine := portfolio.New(oracle, hints, prices, portfolio.Network{
		ID:           st.Network,
		NativeSymbol: st.NativeSymbol,
		NativeCoinID: st.NativeCoinID,
		Platform:     st.Platform,
	})
	engine.Logf = func(format string, a ...any) {
		fmt.Printf("[engine] "+format+"\n", a...)
	}

	cache := pricing.NewCache()
	var prev *discovery.HintSet

	for {
		res, err := engine.Get(ctx, account, portfolio.GetOptions{
			Currencies:    st.Currencies,
			PreviousHints: prev,
			PriceCache:    cache,
			PriceRecency:  st.PriceRecency,
			NFTScanLimit:  uint64(st.NFTScanLimit),
		})
		must(err, "portfolio get")

		printResult(res, st.Currencies)

		if *watchEvery <= 0 {
			return
		}
		hs := res.Hints
		prev = &hs
		time.Sleep(*watchEvery)
	}
}

func must(err error, msg string) {
	if err != nil {
		die(msg + ": " + err.Error())
	}
}

func die(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
