package deployless

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/sync/singleflight"
)

// Mode selects how a helper contract is executed without being deployed.
type Mode int

const (
	// DetectMode probes the node once and picks the best available mode.
	DetectMode Mode = iota
	// ProxyMode ships the helper's constructor bytecode inside the call input;
	// works on any node but is bounded by the call-data ceiling.
	ProxyMode
	// StateOverrideMode attaches the helper's runtime bytecode to a
	// never-deployed address for the duration of one eth_call.
	StateOverrideMode
)

// Nodes accept at most this much call data; proxy-mode input beyond it fails
// fast instead of truncating.
const maxProxyCalldata = 24576

// deployAddr is an arbitrary address nothing is ever deployed to. Both the
// state-override code attachment and the capability probe target it.
var deployAddr = common.HexToAddress("0x000000000000000000000000000000000000Bf17")

// deployProxyCode is the creation bytecode of the deployless proxy: its
// constructor takes abi.encode(bytes helperInitcode, bytes calldata), deploys
// the helper transiently, forwards the call and returns (or bubbles up) the
// result. Nothing persists after the call returns.
const deployProxyCode = "0x608060405234801561001057600080fd5b5060405161024d38038061024d83398101604081905261002f916100f3565b600082516020840160006000f590506001600160a01b0381163b61005257600080fd5b600080826001600160a01b03168460405161006d9190610157565b600060405180830381855afa9150503d80600081146100a8576040519150601f19603f3d011682016040523d82523d6000602084013e6100ad565b606091505b5091509150816100c057805160208201fd5b805160208201f35b634e487b7160e01b600052604160045260246000fd5b60005b838110156100f95781810151838201526020016100e1565b50506000910152565b6000806040838503121561010657600080fd5b82516001600160401b038082111561011d57600080fd5b818501915085601f83011261013157600080fd5b8151818111156101435761014361c8c8565b604051601f8201601f19908116603f0116810190838211818310171561016b5761016b6100c8565b8160405282815260209350888484870101111561018757600080fd5b600091505b828210156101a9578482018401518183018501529083019061018c565b600084848301015280965050505080840151915080821115f3fe"

// codeReaderCode is the runtime bytecode of a tiny helper that, when handed
// raw constructor bytecode as call data, creates the contract and returns the
// code found at the resulting address. Used once per instance as the
// state-override capability probe: a node that honors the override runs it
// and hands back the helper's true runtime bytecode in one round trip.
const codeReaderCode = "0x608060405236600060003760006000366000600060003637600051602052600051f56000813b806100305760006000fd5b80600060003e6000600082f3fea164736f6c6343000813000a"

// deployFailedMarker is what the proxy returns when create() of the helper
// fails; callers see it as ErrDeployFailed.
var deployFailedMarker = common.FromHex("0x1951b87f")

// Node is the single primitive everything here is built on: a raw JSON-RPC
// call, satisfied by *rpc.Client.
type Node interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// CallOpts tune one deployless call.
type CallOpts struct {
	Mode     Mode // DetectMode defers to the instance's detected capability
	BlockTag string
	From     common.Address
	Gas      uint64
	GasPrice *big.Int
}

// Callable is one helper contract bound to one node connection. Capability
// detection is lazy, single-flight and memoized for the instance lifetime.
type Callable struct {
	node Node
	abi  abi.ABI
	code []byte // constructor bytecode
	mode Mode   // forced mode, or DetectMode

	probe singleflight.Group

	mu         sync.Mutex
	detected   bool
	overrideOK bool
	runtime    []byte // captured (or supplied) runtime bytecode
}

// New binds a helper contract (ABI JSON + constructor bytecode) to a node
// connection, with lazy capability detection.
func New(n Node, abiJSON string, code []byte) (*Callable, error) {
	return newCallable(n, abiJSON, code, nil, DetectMode)
}

// NewForced pins the execution mode. StateOverrideMode requires the helper's
// runtime bytecode up front since no probe will run to capture it.
func NewForced(n Node, abiJSON string, code, runtime []byte, mode Mode) (*Callable, error) {
	if mode == StateOverrideMode && len(runtime) == 0 {
		return nil, fmt.Errorf("deployless: forced state override needs runtime bytecode")
	}
	return newCallable(n, abiJSON, code, runtime, mode)
}

func newCallable(n Node, abiJSON string, code, runtime []byte, mode Mode) (*Callable, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("deployless: empty contract bytecode")
	}
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("deployless: parse abi: %w", err)
	}
	c := &Callable{node: n, abi: parsed, code: code, mode: mode, runtime: runtime}
	if mode == StateOverrideMode {
		c.detected = true
		c.overrideOK = true
	}
	return c, nil
}

// StateOverrideSupported reports (detecting on first use) whether the node
// honors eth_call state overrides.
func (c *Callable) StateOverrideSupported(ctx context.Context) bool {
	if c.mode == ProxyMode {
		return false
	}
	_ = c.ensureDetected(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overrideOK
}

// Call invokes one method of the helper against chain state at opts.BlockTag,
// in exactly one network round trip, and decodes its return tuple.
func (c *Callable) Call(ctx context.Context, method string, args []interface{}, opts CallOpts) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("deployless: pack %s: %w", method, err)
	}

	mode := opts.Mode
	if mode == DetectMode {
		mode = c.mode
	}
	if mode == DetectMode {
		if err := c.ensureDetected(ctx); err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.overrideOK {
			mode = StateOverrideMode
		} else {
			mode = ProxyMode
		}
		c.mu.Unlock()
	}

	blockTag := opts.BlockTag
	if blockTag == "" {
		blockTag = "latest"
	}

	var ret []byte
	switch mode {
	case StateOverrideMode:
		ret, err = c.callWithOverride(ctx, data, blockTag, opts)
	case ProxyMode:
		ret, err = c.callViaProxy(ctx, data, blockTag, opts)
	default:
		return nil, fmt.Errorf("deployless: unknown mode %d", mode)
	}
	if err != nil {
		return nil, err
	}

	out, err := c.abi.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("deployless: unpack %s: %w", method, err)
	}
	return out, nil
}

func (c *Callable) callWithOverride(ctx context.Context, data []byte, blockTag string, opts CallOpts) ([]byte, error) {
	// An explicit per-call request for override mode still goes through the
	// memoized probe so "unsupported" is an answer, not a guess.
	if err := c.ensureDetected(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	ok, runtime := c.overrideOK, c.runtime
	c.mu.Unlock()
	if !ok || len(runtime) == 0 {
		return nil, ErrStateOverrideUnsupported
	}

	callObj := c.callObj(data, opts)
	callObj["to"] = deployAddr.Hex()
	override := map[string]map[string]string{
		strings.ToLower(deployAddr.Hex()): {"code": hexutil.Encode(runtime)},
	}

	var res string
	if err := c.node.CallContext(ctx, &res, "eth_call", callObj, blockTag, override); err != nil {
		return nil, normalizeCallError(err)
	}
	return decodeHexResult(res)
}

func (c *Callable) callViaProxy(ctx context.Context, data []byte, blockTag string, opts CallOpts) ([]byte, error) {
	inner, err := proxyArgs.Pack(c.code, data)
	if err != nil {
		return nil, fmt.Errorf("deployless: pack proxy input: %w", err)
	}
	full := append(common.FromHex(deployProxyCode), inner...)
	if len(full) > maxProxyCalldata {
		return nil, ErrCalldataTooLarge
	}

	// No "to": a create-style eth_call runs the proxy's constructor, which
	// deploys the helper transiently and forwards the return data.
	callObj := c.callObj(full, opts)

	var res string
	if err := c.node.CallContext(ctx, &res, "eth_call", callObj, blockTag); err != nil {
		return nil, normalizeCallError(err)
	}
	ret, err := decodeHexResult(res)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(ret, deployFailedMarker) {
		return nil, ErrDeployFailed
	}
	return ret, nil
}

func (c *Callable) callObj(data []byte, opts CallOpts) map[string]interface{} {
	callObj := map[string]interface{}{
		"data": hexutil.Encode(data),
	}
	if opts.From != (common.Address{}) {
		callObj["from"] = opts.From.Hex()
	}
	if opts.Gas != 0 {
		callObj["gas"] = hexutil.EncodeUint64(opts.Gas)
	}
	if opts.GasPrice != nil {
		callObj["gasPrice"] = hexutil.EncodeBig(opts.GasPrice)
	}
	return callObj
}

// ensureDetected issues the capability probe at most once per instance;
// concurrent callers share the in-flight probe.
func (c *Callable) ensureDetected(ctx context.Context) error {
	c.mu.Lock()
	if c.detected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	_, err, _ := c.probe.Do("detect", func() (interface{}, error) {
		return nil, c.runProbe(ctx)
	})
	return err
}

// runProbe makes the single detection call: the code reader is attached at
// deployAddr by state override and handed our constructor bytecode. A node
// without override support returns empty data (there is no real code at that
// address); a node with support returns the helper's runtime bytecode, which
// we keep for every later state-override call.
func (c *Callable) runProbe(ctx context.Context) error {
	callObj := map[string]interface{}{
		"to":   deployAddr.Hex(),
		"data": hexutil.Encode(c.code),
	}
	override := map[string]map[string]string{
		strings.ToLower(deployAddr.Hex()): {"code": codeReaderCode},
	}

	var res string
	err := c.node.CallContext(ctx, &res, "eth_call", callObj, "latest", override)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.detected = true
	if err == nil && len(res) > 2 && res != "0x" {
		if runtime, derr := hexutil.Decode(res); derr == nil && len(runtime) > 0 {
			c.overrideOK = true
			c.runtime = runtime
		}
	}
	return nil
}

func decodeHexResult(res string) ([]byte, error) {
	if res == "" || res == "0x" {
		return nil, nil
	}
	ret, err := hexutil.Decode(res)
	if err != nil {
		return nil, fmt.Errorf("deployless: bad eth_call result: %w", err)
	}
	return ret, nil
}

// proxyArgs is abi.encode(bytes helperInitcode, bytes forwardedCalldata), the
// layout the proxy constructor expects after its own creation code.
var proxyArgs = abi.Arguments{
	{Type: mustType("bytes")},
	{Type: mustType("bytes")},
}

func mustType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return ty
}
