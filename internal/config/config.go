package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings keeps all configuration options.
// Naming mirrors the env keys so ops files stay greppable.
type Settings struct {
	RPCURL       string
	IndexerURL   string
	PriceAPIURL  string
	PriceAPIKey  string
	ChainID      string // kept as string to match CLI usage
	Network      string // network slug used by indexer and result objects
	NativeSymbol string
	NativeCoinID string
	Platform     string // price-provider platform id for contract tokens
	Currencies   []string
	PriceRecency time.Duration
	BatchWindow  time.Duration
	NFTScanLimit int
	RPCTimeout   time.Duration
}

// Load reads settings from environment supporting both UPPER_CASE and lower_case keys.
func Load() Settings {
	get := func(keys []string, def string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" { return v }
		}
		return def
	}
	getInt := func(keys []string, def int) int {
		s := get(keys, "")
		if s == "" { return def }
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil { return n }
		return def
	}
	getMS := func(keys []string, def int) time.Duration {
		return time.Duration(getInt(keys, def)) * time.Millisecond
	}
	splitCSV := func(s string) []string {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" { out = append(out, p) }
		}
		return out
	}

	st := Settings{}
	st.RPCURL      = get([]string{"rpc_url", "RPC_URL"}, "https://eth.llamarpc.com")
	st.IndexerURL  = get([]string{"indexer_url", "INDEXER_URL"}, "https://relayer.quaylabs.dev")
	st.PriceAPIURL = get([]string{"price_api_url", "PRICE_API_URL"}, "https://cena.quaylabs.dev/api/v3")
	st.PriceAPIKey = get([]string{"price_api_key", "PRICE_API_KEY"}, "")
	st.ChainID     = get([]string{"chain_id", "CHAIN_ID"}, "")
	st.Network     = get([]string{"network", "NETWORK"}, "ethereum")
	st.NativeSymbol = get([]string{"native_symbol", "NATIVE_SYMBOL"}, "ETH")
	st.NativeCoinID = get([]string{"native_coin_id", "NATIVE_COIN_ID"}, "ethereum")
	st.Platform    = get([]string{"price_platform", "PRICE_PLATFORM"}, "ethereum")
	st.Currencies  = splitCSV(get([]string{"currencies", "CURRENCIES"}, "usd"))
	st.PriceRecency = getMS([]string{"price_recency_ms", "PRICE_RECENCY_MS"}, 60_000)
	st.BatchWindow  = getMS([]string{"batch_window_ms", "BATCH_WINDOW_MS"}, 20)
	st.NFTScanLimit = getInt([]string{"nft_scan_limit", "NFT_SCAN_LIMIT"}, 50)
	st.RPCTimeout   = getMS([]string{"rpc_timeout_ms", "RPC_TIMEOUT_MS"}, 30_000)

	return st
}
