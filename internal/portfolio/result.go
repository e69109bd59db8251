// Package portfolio is the engine's entry point: it turns an account address
// into a complete balances-and-collections snapshot, optionally under
// simulation, with timing telemetry.
package portfolio

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/chainfolio/internal/discovery"
	"github.com/quaylabs/chainfolio/internal/pricing"
)

// Network describes the chain the engine operates on.
type Network struct {
	ID           string   // network slug, also used by the indexer
	ChainID      *big.Int
	NativeSymbol string // symbol substituted for the zero-address asset
	NativeCoinID string // price-provider id of the native coin
	Platform     string // price-provider platform id for contract tokens
}

// TokenResult is one surviving token: positive balance, no item error,
// non-empty symbol. Never mutated after construction; a re-discovery builds a
// fresh one.
type TokenResult struct {
	Address              common.Address
	Symbol               string
	Amount               *big.Int
	AmountPostSimulation *big.Int
	Decimals             uint8
	Network              string
	Prices               []pricing.Price
}

// CollectionResult is one surviving NFT collection (at least one resolved
// collectible).
type CollectionResult struct {
	Address           common.Address
	Name              string
	Symbol            string
	IDs               []*big.Int
	IDsPostSimulation []*big.Int
	Network           string
}

// TokenError records a single asset excluded from the result, without
// affecting its siblings.
type TokenError struct {
	Address common.Address
	Reason  string
}

// Timing breaks down where a Get spent its time.
type Timing struct {
	Discovery   time.Duration // hint fetch + merge
	OracleCall  time.Duration // deployless balance/NFT pages
	PriceUpdate time.Duration // pricing pipeline
}

// Result is the sole contract exposed to the rest of the wallet.
type Result struct {
	Tokens      []TokenResult
	Collections []CollectionResult
	TokenErrors []TokenError
	Total       map[string]float64
	PriceCache  *pricing.Cache
	Hints       discovery.HintSet
	Timing      Timing
}
