package discovery

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/quaylabs/chainfolio/internal/deployless"
)

// TokenInfo is one probed fungible token, in input order. Err is the raw
// contract-level error for this item (empty means success); AmountAfter is
// the post-simulation balance and always defined (equal to Amount when no
// simulation ran or the nonce did not move).
type TokenInfo struct {
	Address     common.Address
	Err         []byte
	Symbol      string
	Amount      *big.Int
	AmountAfter *big.Int
	Decimals    uint8
}

// DecodeItemError renders one asset's raw contract-level error for display.
func DecodeItemError(raw []byte) string {
	return deployless.DecodeRevert(raw)
}

// CollectionQuery identifies one NFT collection to probe.
type CollectionQuery struct {
	Address    common.Address
	Enumerable bool
	IDs        []*big.Int
}

// CollectionInfo is one probed collection, in input order.
type CollectionInfo struct {
	Address  common.Address
	Err      []byte
	Name     string
	Symbol   string
	IDs      []*big.Int
	IDsAfter []*big.Int
}

// Oracle reads current (and optionally post-simulation) holdings through two
// deployless helper contracts: one for fungible balances, one for NFTs.
type Oracle struct {
	node         deployless.Node
	balance      *deployless.Callable
	nft          *deployless.Callable
	nativeSymbol string
}

// NewOracle binds both helper contracts to a node connection. nativeSymbol
// names the chain-native asset; its on-chain "symbol" cannot be read from a
// contract, so it is substituted from network configuration.
func NewOracle(n deployless.Node, nativeSymbol string) (*Oracle, error) {
	bal, err := deployless.New(n, balanceGetterABI, common.FromHex(balanceGetterCode))
	if err != nil {
		return nil, fmt.Errorf("balance oracle: %w", err)
	}
	nft, err := deployless.New(n, nftGetterABI, common.FromHex(nftGetterCode))
	if err != nil {
		return nil, fmt.Errorf("nft oracle: %w", err)
	}
	return &Oracle{node: n, balance: bal, nft: nft, nativeSymbol: nativeSymbol}, nil
}

// StateOverrideSupported reports the detected node capability; it determines
// how large discovery pages can be.
func (o *Oracle) StateOverrideSupported(ctx context.Context) bool {
	return o.balance.StateOverrideSupported(ctx)
}

// Balances probes one page of candidate token addresses. When sim is nil the
// helper only snapshots current holdings; otherwise it snapshots, applies the
// simulated operations in nonce order and snapshots again, and the reported
// nonce progression is validated before any result is returned.
func (o *Oracle) Balances(ctx context.Context, account common.Address, tokens []common.Address, blockTag string, sim *SimulationParams) ([]TokenInfo, error) {
	opts := deployless.CallOpts{BlockTag: blockTag}

	if sim == nil {
		out, err := o.balance.Call(ctx, "getBalances", []interface{}{account, tokens}, opts)
		if err != nil {
			return nil, err
		}
		raw := *abi.ConvertType(out[0], new([]balanceTuple)).(*[]balanceTuple)
		return o.zipBalances(account, tokens, raw, nil, false), nil
	}

	nonce, err := o.simulationStartNonce(ctx, account, sim.Kind)
	if err != nil {
		return nil, err
	}
	out, err := o.balance.Call(ctx, "simulateAndGetBalances", []interface{}{
		account, keysOf(sim), tokens, sim.Factory, callDataOf(sim), nonce, opsOf(sim),
	}, opts)
	if err != nil {
		return nil, err
	}
	beforeNonce := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	afterNonce := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	before := *abi.ConvertType(out[2], new([]balanceTuple)).(*[]balanceTuple)
	after := *abi.ConvertType(out[3], new([]balanceTuple)).(*[]balanceTuple)
	rawErr := *abi.ConvertType(out[4], new([]byte)).(*[]byte)

	if err := checkSimulation(beforeNonce, afterNonce, sim.Ops, rawErr); err != nil {
		return nil, err
	}
	moved := afterNonce.Cmp(beforeNonce) != 0
	return o.zipBalances(account, tokens, before, after, moved), nil
}

func (o *Oracle) zipBalances(account common.Address, tokens []common.Address, before, after []balanceTuple, moved bool) []TokenInfo {
	infos := make([]TokenInfo, 0, len(tokens))
	for i, addr := range tokens {
		if i >= len(before) {
			break
		}
		b := before[i]
		info := TokenInfo{
			Address:     addr,
			Err:         b.Err,
			Symbol:      b.Symbol,
			Amount:      b.Amount,
			AmountAfter: b.Amount,
			Decimals:    b.Decimals,
		}
		if addr == (common.Address{}) {
			// The zero address is the chain-native asset; its symbol comes
			// from network config, not from a contract call.
			info.Symbol = o.nativeSymbol
		}
		if moved && i < len(after) {
			info.AmountAfter = after[i].Amount
		}
		infos = append(infos, info)
	}
	return infos
}

// NFTs probes one page of collections, resolving held collectible ids either
// by sequential scan (enumerable collections, up to limit) or by checking the
// hinted id list.
func (o *Oracle) NFTs(ctx context.Context, account common.Address, collections []CollectionQuery, limit uint64, blockTag string, sim *SimulationParams) ([]CollectionInfo, error) {
	opts := deployless.CallOpts{BlockTag: blockTag}
	qs := make([]collectionQueryTuple, len(collections))
	for i, c := range collections {
		ids := c.IDs
		if ids == nil {
			ids = []*big.Int{}
		}
		qs[i] = collectionQueryTuple{Addr: c.Address, Enumerable: c.Enumerable, Ids: ids}
	}
	lim := new(big.Int).SetUint64(limit)

	if sim == nil {
		out, err := o.nft.Call(ctx, "getAllNFTs", []interface{}{account, qs, lim}, opts)
		if err != nil {
			return nil, err
		}
		raw := *abi.ConvertType(out[0], new([]collectionTuple)).(*[]collectionTuple)
		return zipCollections(collections, raw, nil, false), nil
	}

	nonce, err := o.simulationStartNonce(ctx, account, sim.Kind)
	if err != nil {
		return nil, err
	}
	out, err := o.nft.Call(ctx, "simulateAndGetAllNFTs", []interface{}{
		account, keysOf(sim), qs, sim.Factory, callDataOf(sim), nonce, opsOf(sim), lim,
	}, opts)
	if err != nil {
		return nil, err
	}
	beforeNonce := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	afterNonce := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	before := *abi.ConvertType(out[2], new([]collectionTuple)).(*[]collectionTuple)
	after := *abi.ConvertType(out[3], new([]collectionTuple)).(*[]collectionTuple)
	rawErr := *abi.ConvertType(out[4], new([]byte)).(*[]byte)

	if err := checkSimulation(beforeNonce, afterNonce, sim.Ops, rawErr); err != nil {
		return nil, err
	}
	moved := afterNonce.Cmp(beforeNonce) != 0
	return zipCollections(collections, before, after, moved), nil
}

func zipCollections(collections []CollectionQuery, before, after []collectionTuple, moved bool) []CollectionInfo {
	infos := make([]CollectionInfo, 0, len(collections))
	for i, q := range collections {
		if i >= len(before) {
			break
		}
		b := before[i]
		info := CollectionInfo{
			Address:  q.Address,
			Err:      b.Err,
			Name:     b.Name,
			Symbol:   b.Symbol,
			IDs:      b.Ids,
			IDsAfter: b.Ids,
		}
		if moved && i < len(after) {
			info.IDsAfter = after[i].Ids
		}
		infos = append(infos, info)
	}
	return infos
}

// simulationStartNonce applies the account-kind nonce convention, fetching
// the real pending nonce for smart accounts.
func (o *Oracle) simulationStartNonce(ctx context.Context, account common.Address, kind AccountKind) (*big.Int, error) {
	if kind == ExternallyOwned {
		return startNonce(kind, nil), nil
	}
	var hexNonce string
	if err := o.node.CallContext(ctx, &hexNonce, "eth_getTransactionCount", account.Hex(), "latest"); err != nil {
		return nil, fmt.Errorf("account nonce: %w", err)
	}
	n, err := hexutil.DecodeBig(hexNonce)
	if err != nil {
		return nil, fmt.Errorf("account nonce: %w", err)
	}
	return startNonce(kind, n), nil
}

func keysOf(sim *SimulationParams) [][32]byte {
	if sim.AssociatedKeys == nil {
		return [][32]byte{}
	}
	return sim.AssociatedKeys
}

func callDataOf(sim *SimulationParams) []byte {
	if sim.FactoryCalldata == nil {
		return []byte{}
	}
	return sim.FactoryCalldata
}

func opsOf(sim *SimulationParams) []opTuple {
	ops := make([]opTuple, len(sim.Ops))
	for i, op := range sim.Ops {
		calls := make([]callTuple, len(op.Calls))
		for j, c := range op.Calls {
			v := c.Value
			if v == nil {
				v = big.NewInt(0)
			}
			d := c.Data
			if d == nil {
				d = []byte{}
			}
			calls[j] = callTuple{To: c.To, Value: v, Data: d}
		}
		n := op.Nonce
		if n == nil {
			n = big.NewInt(0)
		}
		ops[i] = opTuple{Nonce: n, Calls: calls}
	}
	return ops
}

// ABI tuple mirrors; field names must match the component names below.

type balanceTuple struct {
	Err      []byte
	Symbol   string
	Amount   *big.Int
	Decimals uint8
}

type collectionTuple struct {
	Err    []byte
	Name   string
	Symbol string
	Ids    []*big.Int
}

type collectionQueryTuple struct {
	Addr       common.Address
	Enumerable bool
	Ids        []*big.Int
}

type callTuple struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

type opTuple struct {
	Nonce *big.Int
	Calls []callTuple
}
