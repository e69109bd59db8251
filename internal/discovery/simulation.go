package discovery

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quaylabs/chainfolio/internal/deployless"
)

// AccountKind drives the nonce convention used when simulating: a smart
// account continues from its real on-chain nonce, a plain EOA (which cannot
// be simulated against its real nonce without a signature) free-runs from a
// fixed sentinel nonce reserved for simulation.
type AccountKind int

const (
	SmartAccount AccountKind = iota
	ExternallyOwned
)

// eoaSimulationNonce is the out-of-band sentinel; no real account ever
// reaches it.
var eoaSimulationNonce = new(big.Int).Lsh(big.NewInt(1), 240)

// Call is one call inside a simulated operation.
type Call struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// SimulationOp is one pending operation: the nonce it executes at plus its
// calls, applied in nonce order by the oracle helper.
type SimulationOp struct {
	Nonce *big.Int
	Calls []Call
}

// SimulationParams describe the hypothetical batch to run before the "after"
// snapshot: the account's signer keys (smart-account signature emulation),
// deployment parameters for counterfactual accounts, and the operations.
type SimulationParams struct {
	Kind            AccountKind
	AssociatedKeys  [][32]byte
	Factory         common.Address
	FactoryCalldata []byte
	Ops             []SimulationOp
}

// startNonce resolves the account-kind nonce convention once per simulated
// call.
func startNonce(kind AccountKind, onchain *big.Int) *big.Int {
	if kind == ExternallyOwned {
		return new(big.Int).Set(eoaSimulationNonce)
	}
	if onchain == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(onchain)
}

// SimulationError reports a violated simulation-integrity invariant. It is
// fatal to the portfolio call that triggered it, and distinct from "empty
// wallet": it means an assumption (usually a supplied nonce) is broken.
type SimulationError struct {
	Before *big.Int
	After  *big.Int
	Msg    string
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation error: %s (nonce before=%v after=%v)", e.Msg, e.Before, e.After)
}

// checkSimulation validates the nonce progression reported by the oracle
// helper, in the documented order. A nil return with ops supplied guarantees
// after > before and after >= max(op nonces)+1.
func checkSimulation(before, after *big.Int, ops []SimulationOp, rawErr []byte) error {
	simErr := func(msg string) error {
		return &SimulationError{Before: before, After: after, Msg: msg}
	}
	if len(rawErr) > 0 {
		return simErr(deployless.DecodeRevert(rawErr))
	}
	if after.Sign() == 0 {
		return simErr("simulated execution reverted")
	}
	if after.Cmp(before) < 0 {
		return simErr("nonce moved backwards")
	}
	if len(ops) == 0 {
		return nil
	}
	if after.Cmp(before) == 0 {
		return simErr("nonce did not increment, was a wrong nonce supplied?")
	}
	maxNonce := big.NewInt(0)
	for _, op := range ops {
		if op.Nonce != nil && op.Nonce.Cmp(maxNonce) > 0 {
			maxNonce = op.Nonce
		}
	}
	want := new(big.Int).Add(maxNonce, big.NewInt(1))
	if after.Cmp(want) < 0 {
		return simErr("trailing operations were skipped")
	}
	return nil
}
